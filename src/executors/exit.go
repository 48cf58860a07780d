package executors

import (
	"context"
	"fmt"

	"botexecutor/src/mapper"
	"botexecutor/src/model"
	"botexecutor/src/position"
	"botexecutor/src/repository"
)

// ExitPosition sends an exit order for qty of a position, the whole
// remaining quantity when qty is 0. It is the exit path of the square-off
// scheduler and of manual exits. Only one exit per position can be in flight;
// a second caller gets position.ErrExitInProgress. Exits with reason
// EMERGENCY pass an active emergency stop, every other exit is gated.
func (o *Orchestrator) ExitPosition(ctx context.Context, positionID uint, reason string, qty int64) (*model.TradeExecution, error) {
	if qty < 0 {
		return nil, fmt.Errorf("position %d: %w", positionID, position.ErrInvalidExitQuantity)
	}
	if reason == "" {
		reason = model.ExitReasonManual
	}

	tag := repository.NewOrderTag()
	pos, err := o.claimExit(ctx, positionID, tag)
	if err != nil {
		return nil, err
	}
	defer o.releaseExit(ctx, pos.ID, tag)

	if qty == 0 {
		qty = pos.CurrentQuantity
	}
	if qty > pos.CurrentQuantity {
		return nil, fmt.Errorf("position %d: exit %d > open %d: %w", positionID, qty, pos.CurrentQuantity, position.ErrExitExceedsQuantity)
	}

	tradeType := model.TradeTypeExit
	if qty < pos.CurrentQuantity {
		tradeType = model.TradeTypePartialExit
	}
	price := pos.LastPrice
	if !price.IsPositive() {
		price = pos.EntryPrice
	}

	exec := &model.TradeExecution{
		UserID:            pos.UserID,
		BotID:             pos.BotID,
		PositionID:        &pos.ID,
		Symbol:            pos.Symbol,
		Exchange:          pos.Exchange,
		InstrumentType:    pos.InstrumentType,
		Product:           pos.Product,
		OrderType:         model.OrderTypeExit,
		Side:              mapper.ExitSideFor(pos.Side),
		TradeType:         tradeType,
		RequestedQuantity: qty,
		RequestedPrice:    price,
		OrderTag:          tag,
		ExitReason:        reason,
		IsEmergencyExit:   reason == model.ExitReasonEmergency,
	}
	if err := o.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("create exit execution for position %d: %w", positionID, err)
	}

	o.log.WithFields(map[string]interface{}{
		"position_id":  pos.ID,
		"execution_id": exec.ID,
		"reason":       reason,
		"qty":          qty,
	}).Info("Exiting position")

	err = o.run(ctx, &job{exec: exec, health: newHealthChecks(o.config.OrderTimeout)})
	return exec, err
}

// claimExit takes the exit claim of a position for the order tagged tag and
// returns the position as it stands under the claim.
func (o *Orchestrator) claimExit(ctx context.Context, positionID uint, tag string) (*model.Position, error) {
	now := o.now().UTC()
	claimed, err := o.positions.ClaimExit(ctx, positionID, tag, now, now.Add(-o.config.ExitClaimTimeout))
	if err != nil {
		return nil, fmt.Errorf("claim exit of position %d: %w", positionID, err)
	}

	pos, err := o.positions.FindByID(ctx, positionID)
	if err == nil && claimed && (pos == nil || !pos.IsActive() || pos.CurrentQuantity <= 0) {
		o.releaseExit(ctx, positionID, tag)
		claimed = false
	}
	switch {
	case err != nil:
		if claimed {
			o.releaseExit(ctx, positionID, tag)
		}
		return nil, fmt.Errorf("load position %d: %w", positionID, err)
	case pos == nil:
		return nil, fmt.Errorf("position %d: %w", positionID, position.ErrPositionNotFound)
	case !pos.IsActive() || pos.CurrentQuantity <= 0:
		return nil, fmt.Errorf("position %d: %w", positionID, position.ErrPositionClosed)
	case !claimed:
		return nil, fmt.Errorf("position %d: %w", positionID, position.ErrExitInProgress)
	}
	return pos, nil
}

func (o *Orchestrator) releaseExit(ctx context.Context, positionID uint, tag string) {
	if err := o.positions.ReleaseExit(context.WithoutCancel(ctx), positionID, tag); err != nil {
		o.log.WithField("position_id", positionID).WithError(err).Warn("Failed to release exit claim")
	}
}
