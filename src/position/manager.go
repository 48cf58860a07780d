package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botexecutor/src/mapper"
	"botexecutor/src/model"
	"botexecutor/src/repository"
	"botexecutor/src/tp_sl"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrConcurrentUpdate = errors.New("position updated concurrently")
	ErrNotExecuted      = errors.New("execution is not filled")
	ErrExitInProgress   = errors.New("another exit is in flight for the position")
)

// EventPositionChanged is published after every persisted position change.
const EventPositionChanged = "position.changed"

type positionStore interface {
	Create(ctx context.Context, pos *model.Position) error
	FindByID(ctx context.Context, id uint) (*model.Position, error)
	SaveExit(ctx context.Context, pos *model.Position, exit *model.PositionExit) error
}

type executionStore interface {
	LinkPosition(ctx context.Context, id, positionID uint) error
	AttachPnl(ctx context.Context, id uint, pnl, fees decimal.Decimal) error
}

type publisher interface {
	Publish(eventType string, data interface{})
}

// Manager owns every position state change: opening from an entry fill,
// shrinking or closing from exit fills, and out-of-band closes found by
// reconciliation.
type Manager struct {
	positions  positionStore
	executions executionStore
	events     publisher
	log        *logger.Entry
	now        func() time.Time
}

func NewManager(positions positionStore, executions executionStore, events publisher, log *logger.Entry) *Manager {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Manager{
		positions:  positions,
		executions: executions,
		events:     events,
		log:        log.WithField("component", "position_manager"),
		now:        time.Now,
	}
}

func (m *Manager) publish(pos *model.Position) {
	if m.events != nil {
		m.events.Publish(EventPositionChanged, pos)
	}
}

// ApplyEntry opens a position from a filled ENTRY execution.
func (m *Manager) ApplyEntry(ctx context.Context, exec *model.TradeExecution, bot *model.Bot) (*model.Position, error) {
	if exec.Status != model.ExecutionStatusExecuted || exec.ExecutedQuantity <= 0 {
		return nil, fmt.Errorf("execution %d: %w", exec.ID, ErrNotExecuted)
	}

	openedAt := m.now().UTC()
	if exec.ExecutedAt != nil {
		openedAt = exec.ExecutedAt.UTC()
	}

	side := mapper.PositionSideForSignal(exec.Side)
	pos := &model.Position{
		UserID:           exec.UserID,
		BotID:            exec.BotID,
		EntryExecutionID: exec.ID,
		SignalID:         exec.SignalID,
		Symbol:           exec.Symbol,
		Exchange:         exec.Exchange,
		InstrumentType:   exec.InstrumentType,
		Product:          exec.Product,
		Side:             side,
		Status:           model.PositionStatusOpen,
		EntryPrice:       exec.ExecutedPrice,
		EntryQuantity:    exec.ExecutedQuantity,
		CurrentQuantity:  exec.ExecutedQuantity,
		LastPrice:        exec.ExecutedPrice,
		OpenedAt:         openedAt,
	}

	if bot != nil {
		pos.StopLoss, pos.Target = tp_sl.Levels(side, exec.ExecutedPrice, bot.StopLossPercent, bot.TargetPercent)
		if bot.IsIntraday && bot.SquareOffTime != "" {
			pos.IsIntraday = true
			pos.ScheduledExitTime = bot.SquareOffTime
		}
	}

	if err := m.positions.Create(ctx, pos); err != nil {
		return nil, fmt.Errorf("create position for execution %d: %w", exec.ID, err)
	}
	if err := m.executions.LinkPosition(ctx, exec.ID, pos.ID); err != nil {
		return nil, fmt.Errorf("link execution %d to position %d: %w", exec.ID, pos.ID, err)
	}
	exec.PositionID = &pos.ID

	m.log.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"user_id":     pos.UserID,
		"symbol":      pos.Symbol,
		"side":        pos.Side,
		"qty":         pos.EntryQuantity,
		"intraday":    pos.IsIntraday,
	}).Info("Position opened")

	m.publish(pos)
	return pos, nil
}

// ApplyExit records a filled exit execution against a position.
func (m *Manager) ApplyExit(ctx context.Context, exec *model.TradeExecution, positionID uint, reason string) (*model.Position, error) {
	if exec.Status != model.ExecutionStatusExecuted || exec.ExecutedQuantity <= 0 {
		return nil, fmt.Errorf("execution %d: %w", exec.ID, ErrNotExecuted)
	}

	at := m.now().UTC()
	if exec.ExecutedAt != nil {
		at = exec.ExecutedAt.UTC()
	}

	execID := exec.ID
	pos, exit, err := m.applyWithRetry(ctx, positionID, func(*model.Position) int64 {
		return exec.ExecutedQuantity
	}, exec.ExecutedPrice, reason, &execID, at)
	if err != nil {
		m.log.WithFields(map[string]interface{}{
			"position_id":  positionID,
			"execution_id": exec.ID,
			"qty":          exec.ExecutedQuantity,
		}).WithError(err).Error("Failed to apply exit")
		return nil, err
	}

	exec.RealizedPnl = exit.Pnl
	if err := m.executions.AttachPnl(ctx, exec.ID, exit.Pnl, exec.Fees); err != nil {
		return pos, fmt.Errorf("attach pnl to execution %d: %w", exec.ID, err)
	}
	return pos, nil
}

// CloseExternally records that the broker no longer holds the position.
// No order is sent; the remaining quantity is exited at livePrice.
func (m *Manager) CloseExternally(ctx context.Context, positionID uint, livePrice decimal.Decimal) (*model.Position, error) {
	pos, _, err := m.applyWithRetry(ctx, positionID, func(p *model.Position) int64 {
		return p.CurrentQuantity
	}, livePrice, model.ExitReasonExternal, nil, m.now().UTC())
	return pos, err
}

// ReduceExternally records a broker-side reduction of qty without an order.
func (m *Manager) ReduceExternally(ctx context.Context, positionID uint, qty int64, livePrice decimal.Decimal) (*model.Position, error) {
	pos, _, err := m.applyWithRetry(ctx, positionID, func(*model.Position) int64 {
		return qty
	}, livePrice, model.ExitReasonExternal, nil, m.now().UTC())
	return pos, err
}

// applyWithRetry re-reads the position, applies Transition and saves it with
// the version check. A version conflict is retried once on a fresh read.
func (m *Manager) applyWithRetry(
	ctx context.Context,
	positionID uint,
	qtyFor func(*model.Position) int64,
	price decimal.Decimal,
	reason string,
	executionID *uint,
	at time.Time,
) (*model.Position, *model.PositionExit, error) {
	const attempts = 2

	for attempt := 1; attempt <= attempts; attempt++ {
		pos, err := m.positions.FindByID(ctx, positionID)
		if err != nil {
			return nil, nil, err
		}
		if pos == nil {
			return nil, nil, fmt.Errorf("position %d: %w", positionID, ErrPositionNotFound)
		}

		exitPrice := price
		if !exitPrice.IsPositive() {
			exitPrice = pos.LastPrice
			if !exitPrice.IsPositive() {
				exitPrice = pos.EntryPrice
			}
		}

		exit, err := Transition(pos, qtyFor(pos), exitPrice, reason, at)
		if err != nil {
			return nil, nil, err
		}
		exit.ExecutionID = executionID

		err = m.positions.SaveExit(ctx, pos, &exit)
		if errors.Is(err, repository.ErrVersionConflict) {
			m.log.WithFields(map[string]interface{}{
				"position_id": positionID,
				"attempt":     attempt,
			}).Warn("Position changed underneath exit, re-reading")
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		m.log.WithFields(map[string]interface{}{
			"position_id": pos.ID,
			"reason":      reason,
			"qty":         exit.Quantity,
			"price":       exit.Price.String(),
			"pnl":         exit.Pnl.String(),
			"status":      pos.Status,
			"remaining":   pos.CurrentQuantity,
		}).Info("Position exit applied")

		m.publish(pos)
		return pos, &exit, nil
	}

	return nil, nil, fmt.Errorf("position %d: %w", positionID, ErrConcurrentUpdate)
}
