package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InstrumentTypeFuture = "FUT"
	InstrumentTypeOption = "OPT"
	InstrumentTypeEquity = "EQ"

	ProductIntraday = "MIS"
	ProductNormal   = "NRML"
	ProductDelivery = "CNC"
)

// Bot is a signal source that users subscribe to through allocations.
// It carries the lot-sizing rule and the intraday square-off configuration
// applied to every position it opens.
type Bot struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Symbol         string `gorm:"size:60;not null" json:"symbol"`
	Exchange       string `gorm:"size:20;not null" json:"exchange"`
	InstrumentType string `gorm:"size:10;not null;default:FUT" json:"instrument_type"`
	Product        string `gorm:"size:10;not null;default:MIS" json:"product"`

	LotSize        int64           `gorm:"not null;default:1" json:"lot_size"`
	MarginPerLot   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"margin_per_lot"`
	MaxLotsPerUser int64           `gorm:"not null;default:0" json:"max_lots_per_user"` // 0 means unlimited

	IsIntraday      bool            `gorm:"not null" json:"is_intraday"`
	SquareOffTime   string          `gorm:"size:5" json:"square_off_time"` // HH:MM in market time
	StopLossPercent decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0" json:"stop_loss_percent"`
	TargetPercent   decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0" json:"target_percent"`

	WebhookPassphrase string `gorm:"size:200" json:"-"`
	Active            bool   `gorm:"not null" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Bot) TableName() string {
	return "bots"
}
