package position

import (
	"errors"
	"fmt"
	"time"

	"botexecutor/src/model"

	"github.com/shopspring/decimal"
)

var (
	ErrPositionClosed      = errors.New("position is closed")
	ErrExitExceedsQuantity = errors.New("exit quantity exceeds open quantity")
	ErrInvalidExitQuantity = errors.New("exit quantity must be positive")
)

// ExitPnl is (exit - entry) * qty, negated for shorts.
func ExitPnl(pos *model.Position, qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Sub(pos.EntryPrice).
		Mul(decimal.NewFromInt(qty)).
		Mul(decimal.NewFromInt(pos.Sign()))
}

// Transition applies one exit to pos in memory and returns the exit record.
// It never clamps: an exit larger than the open quantity is an error and pos
// is left untouched.
func Transition(pos *model.Position, qty int64, price decimal.Decimal, reason string, at time.Time) (model.PositionExit, error) {
	if !pos.IsActive() {
		return model.PositionExit{}, fmt.Errorf("position %d: %w", pos.ID, ErrPositionClosed)
	}
	if qty <= 0 {
		return model.PositionExit{}, fmt.Errorf("position %d: %w", pos.ID, ErrInvalidExitQuantity)
	}
	if qty > pos.CurrentQuantity {
		return model.PositionExit{}, fmt.Errorf("position %d: exit %d > open %d: %w",
			pos.ID, qty, pos.CurrentQuantity, ErrExitExceedsQuantity)
	}

	pnl := ExitPnl(pos, qty, price)

	exited := pos.EntryQuantity - pos.CurrentQuantity
	notional := pos.AveragePrice.Mul(decimal.NewFromInt(exited)).Add(price.Mul(decimal.NewFromInt(qty)))
	pos.AveragePrice = notional.Div(decimal.NewFromInt(exited + qty))

	pos.RealizedPnl = pos.RealizedPnl.Add(pnl)
	pos.CurrentQuantity -= qty

	if pos.CurrentQuantity == 0 {
		closedAt := at
		pos.Status = model.PositionStatusClosed
		pos.ClosedAt = &closedAt
		pos.ExitReason = reason
		pos.UnrealizedPnl = decimal.Zero
	} else {
		pos.Status = model.PositionStatusPartial
		pos.UnrealizedPnl = ExitPnl(pos, pos.CurrentQuantity, price)
	}

	return model.PositionExit{
		PositionID: pos.ID,
		Quantity:   qty,
		Price:      price,
		Reason:     reason,
		Pnl:        pnl,
		ExecutedAt: at,
	}, nil
}
