package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"botexecutor/src/connectors"
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

type cancelRecorder struct {
	connectors.BrokerGateway

	mu        sync.Mutex
	cancelled []string
	err       error
}

func (c *cancelRecorder) CancelOrder(_ context.Context, brokerOrderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, brokerOrderID)
	return c.err
}

type staticProvider struct {
	gateway connectors.BrokerGateway
}

func (p staticProvider) GatewayFor(context.Context, uint) (connectors.BrokerGateway, error) {
	return p.gateway, nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (r *recordedEvents) Publish(_ string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := data.(map[string]interface{}); ok {
		r.events = append(r.events, m)
	}
}

type stopFixture struct {
	db         *gorm.DB
	executions *repository.ExecutionRepository
	gateway    *cancelRecorder
	events     *recordedEvents
	controller *EmergencyStopController
}

func newStopFixture(t *testing.T) *stopFixture {
	t.Helper()
	db := dbtest.NewSQLite(t)
	nullLogger, _ := test.NewNullLogger()

	f := &stopFixture{
		db:         db,
		executions: (&repository.ExecutionRepository{}).WithDB(db),
		gateway:    &cancelRecorder{},
		events:     &recordedEvents{},
	}
	f.controller = NewEmergencyStopController(
		(&repository.EmergencyStopRepository{}).WithDB(db),
		f.executions,
		staticProvider{gateway: f.gateway},
		(&repository.ExceptionRepository{}).WithDB(db),
		f.events,
		Config{CancelTimeout: time.Second},
		logrus.NewEntry(nullLogger),
	)
	return f
}

func (f *stopFixture) execution(t *testing.T, botID uint, userID uint, status string, brokerOrderID *string) *model.TradeExecution {
	t.Helper()
	exec := &model.TradeExecution{
		UserID: userID, BotID: botID, Symbol: "NIFTYFUT", Exchange: "NFO",
		OrderType: model.SideBuy, Side: model.SideBuy, TradeType: model.TradeTypeEntry,
		RequestedQuantity: 50, RequestedPrice: decimal.NewFromInt(100),
		Status: status, BrokerOrderID: brokerOrderID,
	}
	require.NoError(t, f.executions.Create(context.Background(), exec))
	return exec
}

func uintPtr(v uint) *uint { return &v }

func strPtr(v string) *string { return &v }

func TestActivateGlobalCancelsPendingEverywhere(t *testing.T) {
	f := newStopFixture(t)
	ctx := context.Background()

	a := f.execution(t, 1, 10, model.ExecutionStatusPending, nil)
	b := f.execution(t, 2, 11, model.ExecutionStatusPending, nil)
	done := f.execution(t, 1, 12, model.ExecutionStatusExecuted, strPtr("done-1"))

	result, err := f.controller.Activate(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, model.StopScopeGlobal, result.Scope)
	assert.EqualValues(t, 2, result.Cancelled)

	for _, id := range []uint{a.ID, b.ID} {
		row, err := f.executions.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ExecutionStatusCancelled, row.Status)
		assert.True(t, row.IsEmergencyExit)
	}
	row, err := f.executions.FindByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusExecuted, row.Status)

	stopped, err := f.controller.IsStopped(ctx, 99)
	require.NoError(t, err)
	assert.True(t, stopped)

	status, err := f.controller.Status(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "manual", status.Reason)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, true, f.events.events[0]["active"])
}

func TestActivateBotScopeLeavesOtherBots(t *testing.T) {
	f := newStopFixture(t)
	ctx := context.Background()

	scoped := f.execution(t, 7, 10, model.ExecutionStatusPending, nil)
	other := f.execution(t, 8, 10, model.ExecutionStatusPending, nil)

	result, err := f.controller.Activate(ctx, uintPtr(7), "drawdown")
	require.NoError(t, err)
	assert.Equal(t, model.StopScopeBot, result.Scope)
	assert.EqualValues(t, 1, result.Cancelled)

	row, err := f.executions.FindByID(ctx, scoped.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCancelled, row.Status)

	row, err = f.executions.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusPending, row.Status)

	stopped, err := f.controller.IsStopped(ctx, 7)
	require.NoError(t, err)
	assert.True(t, stopped)
	stopped, err = f.controller.IsStopped(ctx, 8)
	require.NoError(t, err)
	assert.False(t, stopped)

	active, err := f.controller.ActiveStops(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.EqualValues(t, 7, active[0].BotID)
}

// inFlight moves a PENDING row through the gate and, when orderID is set,
// records the order the broker accepted for it.
func (f *stopFixture) inFlight(t *testing.T, botID, userID uint, orderID string) *model.TradeExecution {
	t.Helper()
	ctx := context.Background()
	exec := f.execution(t, botID, userID, model.ExecutionStatusPending, nil)
	ok, err := f.executions.MarkSubmitted(ctx, exec.ID, botID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)
	if orderID != "" {
		stopped, err := f.executions.MarkPlaced(ctx, exec.ID, botID, orderID)
		require.NoError(t, err)
		require.False(t, stopped)
	}
	return exec
}

func TestActivateRequestsBrokerCancelForSubmitted(t *testing.T) {
	f := newStopFixture(t)
	ctx := context.Background()

	f.inFlight(t, 3, 10, "240304000001")
	f.inFlight(t, 3, 11, "")
	f.gateway.err = errors.New("order already complete")

	result, err := f.controller.Activate(ctx, uintPtr(3), "broker outage")
	require.NoError(t, err)
	assert.Equal(t, 1, result.CancelRequested)
	assert.Equal(t, 1, result.CancelFailed)
	assert.Equal(t, []string{"240304000001"}, f.gateway.cancelled)

	exceptions, err := (&repository.ExceptionRepository{}).WithDB(f.db).FindLatest(ctx, 5)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, "CancelOrder", exceptions[0].Method)
}

func TestActivateLeavesEmergencyExitsRunning(t *testing.T) {
	f := newStopFixture(t)
	ctx := context.Background()

	exit := &model.TradeExecution{
		UserID: 10, BotID: 3, Symbol: "NIFTYFUT", Exchange: "NFO",
		OrderType: model.OrderTypeExit, Side: model.SideSell, TradeType: model.TradeTypeExit,
		RequestedQuantity: 50, RequestedPrice: decimal.NewFromInt(100),
		ExitReason: model.ExitReasonEmergency, IsEmergencyExit: true,
	}
	require.NoError(t, f.executions.Create(ctx, exit))
	ok, err := f.executions.MarkSubmitted(ctx, exit.ID, 3, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.executions.MarkPlaced(ctx, exit.ID, 3, "240304000009")
	require.NoError(t, err)

	result, err := f.controller.Activate(ctx, nil, "halt")
	require.NoError(t, err)
	assert.Zero(t, result.CancelRequested)
	assert.Empty(t, f.gateway.cancelled)
}

func TestDeactivateKeepsCancelledRows(t *testing.T) {
	f := newStopFixture(t)
	ctx := context.Background()

	exec := f.execution(t, 1, 10, model.ExecutionStatusPending, nil)

	_, err := f.controller.Activate(ctx, nil, "halt")
	require.NoError(t, err)
	require.NoError(t, f.controller.Deactivate(ctx, nil))

	stopped, err := f.controller.IsStopped(ctx, 1)
	require.NoError(t, err)
	assert.False(t, stopped)

	row, err := f.executions.FindByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCancelled, row.Status)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, false, f.events.events[1]["active"])
}
