package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroQuantity     = errors.New("allocated capital does not cover one lot")
	ErrInvalidLotConfig = errors.New("invalid lot configuration")
)

// CalculateQuantity sizes an entry from the capital a user allocated to a bot.
// lots = floor(capital / marginPerLot), capped at maxLots when maxLots > 0.
// The returned quantity is lots * lotSize.
func CalculateQuantity(capital, marginPerLot decimal.Decimal, lotSize, maxLots int64) (int64, int64, error) {
	if lotSize <= 0 || !marginPerLot.IsPositive() {
		return 0, 0, fmt.Errorf("%w: lot size %d, margin per lot %s", ErrInvalidLotConfig, lotSize, marginPerLot)
	}
	if !capital.IsPositive() {
		return 0, 0, ErrZeroQuantity
	}

	lots := capital.Div(marginPerLot).Floor().IntPart()
	if maxLots > 0 && lots > maxLots {
		lots = maxLots
	}
	if lots <= 0 {
		return 0, 0, ErrZeroQuantity
	}
	return lots * lotSize, lots, nil
}
