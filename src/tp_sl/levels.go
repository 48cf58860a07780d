package tp_sl

import (
	"botexecutor/src/model"

	"github.com/shopspring/decimal"
)

// DefaultTick is the NSE F&O price tick.
var DefaultTick = decimal.RequireFromString("0.05")

var hundred = decimal.NewFromInt(100)

// Levels computes stop-loss and target prices from percentages of the entry.
// A non-positive percentage leaves the level unset.
//
// Long:  SL = entry * (1 - sl%), target = entry * (1 + tgt%)
// Short: SL = entry * (1 + sl%), target = entry * (1 - tgt%)
func Levels(side string, entry, slPercent, targetPercent decimal.Decimal) (decimal.NullDecimal, decimal.NullDecimal) {
	var sl, tgt decimal.NullDecimal
	if !entry.IsPositive() {
		return sl, tgt
	}

	sign := decimal.NewFromInt(1)
	if side == model.PositionSideShort {
		sign = sign.Neg()
	}

	if slPercent.IsPositive() {
		offset := entry.Mul(slPercent).Div(hundred).Mul(sign)
		sl = decimal.NewNullDecimal(RoundToTick(entry.Sub(offset), DefaultTick))
	}
	if targetPercent.IsPositive() {
		offset := entry.Mul(targetPercent).Div(hundred).Mul(sign)
		tgt = decimal.NewNullDecimal(RoundToTick(entry.Add(offset), DefaultTick))
	}
	return sl, tgt
}

// Breached reports which level, if any, the last traded price has crossed.
// The returned reason is model.ExitReasonStopLoss or model.ExitReasonTarget.
func Breached(side string, stopLoss, target decimal.NullDecimal, last decimal.Decimal) (string, bool) {
	if !last.IsPositive() {
		return "", false
	}

	long := side != model.PositionSideShort
	if stopLoss.Valid {
		if (long && last.LessThanOrEqual(stopLoss.Decimal)) || (!long && last.GreaterThanOrEqual(stopLoss.Decimal)) {
			return model.ExitReasonStopLoss, true
		}
	}
	if target.Valid {
		if (long && last.GreaterThanOrEqual(target.Decimal)) || (!long && last.LessThanOrEqual(target.Decimal)) {
			return model.ExitReasonTarget, true
		}
	}
	return "", false
}

// RoundToTick rounds price to the nearest multiple of tick.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}
