package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"botexecutor/src/database/dbtest"
	"botexecutor/src/model"
	"botexecutor/src/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordedEvents) Publish(eventType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

type fixture struct {
	db         *gorm.DB
	positions  *repository.PositionRepository
	executions *repository.ExecutionRepository
	events     *recordedEvents
	manager    *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.NewSQLite(t)
	nullLogger, _ := test.NewNullLogger()

	f := &fixture{
		db:         db,
		positions:  (&repository.PositionRepository{}).WithDB(db),
		executions: (&repository.ExecutionRepository{}).WithDB(db),
		events:     &recordedEvents{},
	}
	f.manager = NewManager(f.positions, f.executions, f.events, logrus.NewEntry(nullLogger))
	f.manager.now = func() time.Time { return time.Date(2025, 3, 4, 6, 0, 0, 0, time.UTC) }
	return f
}

// filled inserts an EXECUTED execution row directly.
func (f *fixture) filled(t *testing.T, side, tradeType string, qty int64, price string, positionID *uint) *model.TradeExecution {
	t.Helper()
	executedAt := time.Date(2025, 3, 4, 5, 0, 0, 0, time.UTC)
	exec := &model.TradeExecution{
		UserID: 1, BotID: 1, Symbol: "NIFTYFUT", Exchange: "NFO", Product: model.ProductIntraday,
		OrderType: side, Side: side, TradeType: tradeType, PositionID: positionID,
		RequestedQuantity: qty, ExecutedQuantity: qty,
		RequestedPrice: decimal.RequireFromString(price), ExecutedPrice: decimal.RequireFromString(price),
		Status: model.ExecutionStatusExecuted, ExecutedAt: &executedAt,
	}
	require.NoError(t, f.executions.Create(context.Background(), exec))
	return exec
}

func TestManagerFiftyThirtyZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bot := &model.Bot{IsIntraday: true, SquareOffTime: "15:15", StopLossPercent: decimal.NewFromInt(1), TargetPercent: decimal.NewFromInt(2)}

	entry := f.filled(t, model.SideBuy, model.TradeTypeEntry, 50, "100", nil)
	pos, err := f.manager.ApplyEntry(ctx, entry, bot)
	require.NoError(t, err)
	assert.Equal(t, model.PositionSideLong, pos.Side)
	assert.Equal(t, model.PositionStatusOpen, pos.Status)
	assert.True(t, pos.IsIntraday)
	assert.Equal(t, "15:15", pos.ScheduledExitTime)
	assert.True(t, pos.StopLoss.Decimal.Equal(decimal.NewFromInt(99)))
	require.NotNil(t, entry.PositionID)

	stored, err := f.executions.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PositionID)
	assert.Equal(t, pos.ID, *stored.PositionID)

	partial := f.filled(t, model.SideSell, model.TradeTypePartialExit, 20, "110", &pos.ID)
	pos, err = f.manager.ApplyExit(ctx, partial, pos.ID, model.ExitReasonManual)
	require.NoError(t, err)
	assert.Equal(t, model.PositionStatusPartial, pos.Status)
	assert.Equal(t, int64(30), pos.CurrentQuantity)
	assert.Equal(t, int64(2), pos.Version)

	final := f.filled(t, model.SideSell, model.TradeTypeExit, 30, "90", &pos.ID)
	_, err = f.manager.ApplyExit(ctx, final, pos.ID, model.ExitReasonAutoSquareOff)
	require.NoError(t, err)

	reloaded, err := f.positions.FindByID(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PositionStatusClosed, reloaded.Status)
	assert.Equal(t, int64(0), reloaded.CurrentQuantity)
	assert.Equal(t, reloaded.EntryQuantity, reloaded.ExitedQuantity())
	require.Len(t, reloaded.Exits, 2)
	assert.Equal(t, int64(20), reloaded.Exits[0].Quantity)
	assert.Equal(t, int64(30), reloaded.Exits[1].Quantity)
	assert.True(t, reloaded.RealizedPnl.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, model.ExitReasonAutoSquareOff, reloaded.ExitReason)
	require.NotNil(t, reloaded.ClosedAt)

	execRow, err := f.executions.FindByID(ctx, final.ID)
	require.NoError(t, err)
	assert.True(t, execRow.RealizedPnl.Equal(decimal.NewFromInt(-300)))

	// a closed position never accepts another exit
	extra := f.filled(t, model.SideSell, model.TradeTypeExit, 1, "90", &pos.ID)
	_, err = f.manager.ApplyExit(ctx, extra, pos.ID, model.ExitReasonSignal)
	assert.ErrorIs(t, err, ErrPositionClosed)

	assert.Len(t, f.events.events, 3)
}

func TestManagerRejectsOversizedExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.filled(t, model.SideSell, model.TradeTypeEntry, 50, "100", nil)
	pos, err := f.manager.ApplyEntry(ctx, entry, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PositionSideShort, pos.Side)
	assert.False(t, pos.IsIntraday)

	exit := f.filled(t, model.SideBuy, model.TradeTypeExit, 60, "95", &pos.ID)
	_, err = f.manager.ApplyExit(ctx, exit, pos.ID, model.ExitReasonSignal)
	assert.ErrorIs(t, err, ErrExitExceedsQuantity)

	reloaded, err := f.positions.FindByID(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), reloaded.CurrentQuantity)
	assert.Empty(t, reloaded.Exits)
}

func TestManagerExternalCloseAndReduce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.filled(t, model.SideBuy, model.TradeTypeEntry, 50, "100", nil)
	pos, err := f.manager.ApplyEntry(ctx, entry, nil)
	require.NoError(t, err)

	pos, err = f.manager.ReduceExternally(ctx, pos.ID, 10, decimal.NewFromInt(105))
	require.NoError(t, err)
	assert.Equal(t, int64(40), pos.CurrentQuantity)

	pos, err = f.manager.CloseExternally(ctx, pos.ID, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, model.PositionStatusClosed, pos.Status)
	assert.Equal(t, model.ExitReasonExternal, pos.ExitReason)

	reloaded, err := f.positions.FindByID(ctx, pos.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Exits, 2)
	for _, e := range reloaded.Exits {
		assert.Nil(t, e.ExecutionID)
		assert.Equal(t, model.ExitReasonExternal, e.Reason)
	}
	// falls back to the entry price: last price is the entry price on open
	assert.True(t, reloaded.Exits[1].Price.Equal(decimal.NewFromInt(100)))

	_, err = f.manager.CloseExternally(ctx, 999, decimal.Zero)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

type conflictingStore struct {
	positionStore
	conflicts int
}

func (s *conflictingStore) SaveExit(ctx context.Context, pos *model.Position, exit *model.PositionExit) error {
	if s.conflicts > 0 {
		s.conflicts--
		return repository.ErrVersionConflict
	}
	return s.positionStore.SaveExit(ctx, pos, exit)
}

func TestManagerRetriesVersionConflictOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := f.filled(t, model.SideBuy, model.TradeTypeEntry, 50, "100", nil)
	pos, err := f.manager.ApplyEntry(ctx, entry, nil)
	require.NoError(t, err)

	store := &conflictingStore{positionStore: f.positions, conflicts: 1}
	f.manager.positions = store

	exit := f.filled(t, model.SideSell, model.TradeTypePartialExit, 10, "101", &pos.ID)
	pos, err = f.manager.ApplyExit(ctx, exit, pos.ID, model.ExitReasonManual)
	require.NoError(t, err)
	assert.Equal(t, int64(40), pos.CurrentQuantity)

	store.conflicts = 2
	exit2 := f.filled(t, model.SideSell, model.TradeTypePartialExit, 10, "101", &pos.ID)
	_, err = f.manager.ApplyExit(ctx, exit2, pos.ID, model.ExitReasonManual)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestApplyEntryRequiresFill(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ApplyEntry(context.Background(), &model.TradeExecution{Status: model.ExecutionStatusSubmitted}, nil)
	assert.ErrorIs(t, err, ErrNotExecuted)
}
