package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPnLSnapshot holds one user's end-of-day P&L. BotPnl is a JSON object
// keyed by bot id.
type DailyPnLSnapshot struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"not null;uniqueIndex:ux_daily_pnl_user_date,priority:1" json:"user_id"`
	Date         string          `gorm:"size:10;not null;uniqueIndex:ux_daily_pnl_user_date,priority:2" json:"date"`
	PortfolioPnl decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"portfolio_pnl"`
	BotPnl       string          `gorm:"type:text" json:"bot_pnl"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (DailyPnLSnapshot) TableName() string {
	return "daily_pnl_snapshots"
}
