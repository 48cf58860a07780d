package model

import "time"

const (
	BrokerKite  = "kite"
	BrokerPaper = "paper"
)

type UserBrokerAccount struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Broker         string    `gorm:"size:20;not null;default:kite" json:"broker"`
	APIKey         string    `gorm:"size:100" json:"-"`
	AccessTokenEnc string    `gorm:"column:access_token;type:text" json:"-"`
	Enabled        bool      `gorm:"not null" json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UserBrokerAccount) TableName() string {
	return "user_broker_accounts"
}
