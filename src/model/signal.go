package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// WebhookSignal is the audit record of one inbound trading instruction.
// Counters and Processed are written once, after the fan-out resolves.
type WebhookSignal struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BotID         uint            `gorm:"not null;index" json:"bot_id"`
	Symbol        string          `gorm:"size:60;not null" json:"symbol"`
	Exchange      string          `gorm:"size:20;not null" json:"exchange"`
	Side          string          `gorm:"size:10;not null" json:"side"`
	Price         decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"price"`
	EmergencyStop bool            `gorm:"not null;default:false" json:"emergency_stop"`

	TotalUsersTargeted   int `gorm:"not null;default:0" json:"total_users_targeted"`
	SuccessfulExecutions int `gorm:"not null;default:0" json:"successful_executions"`
	FailedExecutions     int `gorm:"not null;default:0" json:"failed_executions"`

	Processed   bool       `gorm:"not null;default:false;index" json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	RawPayload  string     `gorm:"type:text" json:"-"`
	ReceivedAt  time.Time  `gorm:"not null" json:"received_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (WebhookSignal) TableName() string {
	return "webhook_signals"
}
