package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"

	PositionStatusOpen    = "OPEN"
	PositionStatusPartial = "PARTIAL"
	PositionStatusClosed  = "CLOSED"

	ExitReasonSignal        = "SIGNAL"
	ExitReasonAutoSquareOff = "AUTO_SQUARE_OFF"
	ExitReasonManual        = "MANUAL"
	ExitReasonEmergency     = "EMERGENCY"
	ExitReasonExternal      = "EXTERNAL"
	ExitReasonStopLoss      = "STOP_LOSS"
	ExitReasonTarget        = "TARGET"
)

// Position is the aggregate exposure opened by one ENTRY execution and
// reduced by its exits. CurrentQuantity always equals EntryQuantity minus
// the sum of Exits quantities.
type Position struct {
	ID               uint  `gorm:"primaryKey" json:"id"`
	UserID           uint  `gorm:"not null;index:idx_position_user_symbol,priority:1" json:"user_id"`
	BotID            uint  `gorm:"not null;index" json:"bot_id"`
	EntryExecutionID uint  `gorm:"not null;uniqueIndex" json:"entry_execution_id"`
	SignalID         *uint `json:"signal_id,omitempty"`

	Symbol         string `gorm:"size:60;not null;index:idx_position_user_symbol,priority:2" json:"symbol"`
	Exchange       string `gorm:"size:20;not null;index:idx_position_user_symbol,priority:3" json:"exchange"`
	InstrumentType string `gorm:"size:10" json:"instrument_type"`
	Product        string `gorm:"size:10" json:"product"`
	Side           string `gorm:"size:10;not null" json:"side"`
	Status         string `gorm:"size:20;not null;index" json:"status"`

	EntryPrice      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"entry_price"`
	EntryQuantity   int64           `gorm:"not null" json:"entry_quantity"`
	CurrentQuantity int64           `gorm:"not null" json:"current_quantity"`
	AveragePrice    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"average_price"` // volume weighted exit price
	RealizedPnl     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"realized_pnl"`
	UnrealizedPnl   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"unrealized_pnl"`
	LastPrice       decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"last_price"`

	StopLoss decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"stop_loss"`
	Target   decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"target"`

	IsIntraday             bool   `gorm:"not null;default:false" json:"is_intraday"`
	ScheduledExitTime      string `gorm:"size:5" json:"scheduled_exit_time,omitempty"`
	AutoSquareOffScheduled bool   `gorm:"not null;default:false" json:"auto_square_off_scheduled"`
	ExitReason             string `gorm:"size:30" json:"exit_reason,omitempty"`

	// Set by reconciliation when the broker reports more than we hold locally.
	QuantityMismatch bool   `gorm:"not null;default:false" json:"quantity_mismatch"`
	BrokerQuantity   *int64 `json:"broker_quantity,omitempty"`

	// Held by the one exit order in flight for this position.
	ExitOrderTag  *string    `gorm:"size:20" json:"-"`
	ExitClaimedAt *time.Time `json:"-"`

	Version int64 `gorm:"not null;default:1" json:"version"`

	OpenedAt  time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Exits []PositionExit `gorm:"foreignKey:PositionID" json:"exits,omitempty"`
}

func (Position) TableName() string {
	return "positions"
}

// Sign returns +1 for long and -1 for short positions.
func (p *Position) Sign() int64 {
	if p.Side == PositionSideShort {
		return -1
	}
	return 1
}

// IsActive reports whether the position still holds quantity.
func (p *Position) IsActive() bool {
	return p.Status == PositionStatusOpen || p.Status == PositionStatusPartial
}

// ExitedQuantity sums the quantity of every recorded exit.
func (p *Position) ExitedQuantity() int64 {
	var total int64
	for _, e := range p.Exits {
		total += e.Quantity
	}
	return total
}

// PositionExit is one fill that reduced a position. ExecutionID is nil for
// exits recorded by reconciliation, where no order was sent.
type PositionExit struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PositionID  uint            `gorm:"not null;index" json:"position_id"`
	ExecutionID *uint           `gorm:"index" json:"execution_id,omitempty"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"price"`
	Reason      string          `gorm:"size:30;not null" json:"reason"`
	Pnl         decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"pnl"`
	ExecutedAt  time.Time       `gorm:"not null;index" json:"executed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (PositionExit) TableName() string {
	return "position_exits"
}
