package model

import "time"

// Exception is a captured runtime error persisted for auditing.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "botexecutor"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "square_off"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Tick"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// JSON encoded context, may be empty
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
