package position

import (
	"testing"
	"time"

	"botexecutor/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPosition(side string, qty int64, entry string) *model.Position {
	return &model.Position{
		ID:              1,
		Side:            side,
		Status:          model.PositionStatusOpen,
		EntryPrice:      decimal.RequireFromString(entry),
		EntryQuantity:   qty,
		CurrentQuantity: qty,
		Version:         1,
	}
}

func TestTransitionPartialThenClose(t *testing.T) {
	pos := openPosition(model.PositionSideLong, 50, "100")
	at := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

	first, err := Transition(pos, 20, decimal.NewFromInt(110), model.ExitReasonSignal, at)
	require.NoError(t, err)
	assert.True(t, first.Pnl.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, model.PositionStatusPartial, pos.Status)
	assert.Equal(t, int64(30), pos.CurrentQuantity)
	assert.Nil(t, pos.ClosedAt)

	second, err := Transition(pos, 30, decimal.NewFromInt(90), model.ExitReasonAutoSquareOff, at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, second.Pnl.Equal(decimal.NewFromInt(-300)))
	assert.Equal(t, model.PositionStatusClosed, pos.Status)
	assert.Equal(t, int64(0), pos.CurrentQuantity)
	assert.True(t, pos.RealizedPnl.Equal(decimal.NewFromInt(-100)))
	assert.True(t, pos.AveragePrice.Equal(decimal.NewFromInt(98)), pos.AveragePrice.String())
	assert.Equal(t, model.ExitReasonAutoSquareOff, pos.ExitReason)
	require.NotNil(t, pos.ClosedAt)
	assert.True(t, pos.UnrealizedPnl.IsZero())
}

func TestTransitionShortPnl(t *testing.T) {
	pos := openPosition(model.PositionSideShort, 10, "200")
	exit, err := Transition(pos, 10, decimal.NewFromInt(190), model.ExitReasonManual, time.Now())
	require.NoError(t, err)
	assert.True(t, exit.Pnl.Equal(decimal.NewFromInt(100)))
}

func TestTransitionRejectsWithoutMutation(t *testing.T) {
	pos := openPosition(model.PositionSideLong, 50, "100")

	_, err := Transition(pos, 60, decimal.NewFromInt(100), model.ExitReasonSignal, time.Now())
	assert.ErrorIs(t, err, ErrExitExceedsQuantity)
	assert.Equal(t, int64(50), pos.CurrentQuantity)
	assert.Equal(t, model.PositionStatusOpen, pos.Status)

	_, err = Transition(pos, 0, decimal.NewFromInt(100), model.ExitReasonSignal, time.Now())
	assert.ErrorIs(t, err, ErrInvalidExitQuantity)

	pos.Status = model.PositionStatusClosed
	_, err = Transition(pos, 1, decimal.NewFromInt(100), model.ExitReasonSignal, time.Now())
	assert.ErrorIs(t, err, ErrPositionClosed)
}
