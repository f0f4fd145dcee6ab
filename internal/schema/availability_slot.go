package schema

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot is a bookable [StartAt, EndAt) interval of one expert.
type AvailabilitySlot struct {
	Base

	ExpertID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_slot_expert_start,priority:1" json:"expert_id"`
	StartAt         time.Time  `gorm:"not null;index:idx_slot_expert_start,priority:2" json:"start_at"`
	EndAt           time.Time  `gorm:"not null" json:"end_at"`
	State           SlotState  `gorm:"size:16;not null;index" json:"state"`
	RecurringRuleID *uuid.UUID `gorm:"type:uuid;index" json:"recurring_rule_id,omitempty"`
}

func (s AvailabilitySlot) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}
