package schema

import (
	"time"

	"github.com/google/uuid"
)

// RecurringRule is a weekly availability pattern in the expert's local time.
// Slots expanded from it keep a back reference.
type RecurringRule struct {
	Base

	ExpertID    uuid.UUID `gorm:"type:uuid;not null;index" json:"expert_id"`
	Weekday     int       `gorm:"not null" json:"weekday"`      // time.Weekday
	StartMinute int       `gorm:"not null" json:"start_minute"` // minutes after local midnight
	EndMinute   int       `gorm:"not null" json:"end_minute"`
	Timezone    string    `gorm:"size:64;not null" json:"timezone"`
	ValidFrom   time.Time `gorm:"not null" json:"valid_from"`
	ValidUntil  time.Time `gorm:"not null" json:"valid_until"`
}
