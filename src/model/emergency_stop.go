package model

import "time"

const (
	StopScopeGlobal = "GLOBAL"
	StopScopeBot    = "BOT"

	// GlobalStopBotID is the bot_id stored on the global stop row.
	GlobalStopBotID uint = 0
)

// EmergencyStop is a persisted kill switch, either global or scoped to one bot.
type EmergencyStop struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Scope         string     `gorm:"size:10;not null;uniqueIndex:ux_emergency_stop_scope,priority:1" json:"scope"`
	BotID         uint       `gorm:"not null;default:0;uniqueIndex:ux_emergency_stop_scope,priority:2" json:"bot_id"`
	Active        bool       `gorm:"not null;default:false;index" json:"active"`
	Reason        string     `gorm:"size:255" json:"reason,omitempty"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (EmergencyStop) TableName() string {
	return "emergency_stops"
}
