package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBotAllocation binds one user to one bot with dedicated capital.
type UserBotAllocation struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;uniqueIndex:ux_allocation_user_bot,priority:1" json:"user_id"`
	BotID            uint            `gorm:"not null;uniqueIndex:ux_allocation_user_bot,priority:2;index" json:"bot_id"`
	AllocatedCapital decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"allocated_capital"`
	IsActive         bool            `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (UserBotAllocation) TableName() string {
	return "user_bot_allocations"
}
