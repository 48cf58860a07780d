package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ExecutionStatusPending   = "PENDING"
	ExecutionStatusSubmitted = "SUBMITTED"
	ExecutionStatusExecuted  = "EXECUTED"
	ExecutionStatusFailed    = "FAILED"
	ExecutionStatusCancelled = "CANCELLED"

	OrderTypeBuy  = "BUY"
	OrderTypeSell = "SELL"
	OrderTypeExit = "EXIT"

	TradeTypeEntry       = "ENTRY"
	TradeTypeExit        = "EXIT"
	TradeTypePartialExit = "PARTIAL_EXIT"
)

// TradeExecution is one order attempt in the execution ledger.
// It moves forward only: PENDING -> SUBMITTED -> EXECUTED, with FAILED and
// CANCELLED as terminal states reachable before EXECUTED.
type TradeExecution struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	UserID       uint  `gorm:"not null;index;uniqueIndex:ux_execution_signal_user,priority:2" json:"user_id"`
	BotID        uint  `gorm:"not null;index" json:"bot_id"`
	SignalID     *uint `gorm:"uniqueIndex:ux_execution_signal_user,priority:1" json:"signal_id,omitempty"`
	AllocationID *uint `json:"allocation_id,omitempty"`
	PositionID   *uint `gorm:"index" json:"position_id,omitempty"`

	Symbol         string `gorm:"size:60;not null" json:"symbol"`
	Exchange       string `gorm:"size:20;not null" json:"exchange"`
	InstrumentType string `gorm:"size:10" json:"instrument_type"`
	Product        string `gorm:"size:10" json:"product"`
	OrderType      string `gorm:"size:10;not null" json:"order_type"`
	Side           string `gorm:"size:10;not null" json:"side"` // side actually sent to the broker
	TradeType      string `gorm:"size:20;not null" json:"trade_type"`

	RequestedQuantity int64           `gorm:"not null" json:"requested_quantity"`
	ExecutedQuantity  int64           `gorm:"not null;default:0" json:"executed_quantity"`
	RequestedPrice    decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"requested_price"`
	ExecutedPrice     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"executed_price"`

	BrokerOrderID *string `gorm:"size:64;index" json:"broker_order_id,omitempty"`
	OrderTag      string  `gorm:"size:20;uniqueIndex" json:"order_tag"`

	Status          string `gorm:"size:20;not null;index" json:"status"`
	ErrorMessage    string `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount      int    `gorm:"not null;default:0" json:"retry_count"`
	IsEmergencyExit bool   `gorm:"not null;default:false" json:"is_emergency_exit"`
	ExitReason      string `gorm:"size:30" json:"exit_reason,omitempty"`

	RealizedPnl decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"realized_pnl"`
	Fees        decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"fees"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (TradeExecution) TableName() string {
	return "trade_executions"
}

// IsTerminal reports whether the execution can no longer change status.
func (e *TradeExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusExecuted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// Succeeded reports whether the attempt reached the broker and was filled.
func (e *TradeExecution) Succeeded() bool {
	return e.Status == ExecutionStatusExecuted
}
