package schema

import (
	"time"

	"github.com/google/uuid"
)

// Booking is the central transactional record. ExpertID duplicates the
// slot owner and must always match it.
type Booking struct {
	Base

	LearnerID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"learner_id"`
	ExpertID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"expert_id"`
	SlotID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"slot_id"`
	StartAt     time.Time     `gorm:"not null;index" json:"start_at"`
	EndAt       time.Time     `gorm:"not null;index" json:"end_at"`
	Status      BookingStatus `gorm:"size:32;not null;index" json:"status"`
	AmountMinor int64         `gorm:"not null" json:"amount_minor"`
	Currency    string        `gorm:"size:3;not null" json:"currency"`
	Version     int           `gorm:"not null" json:"version"`

	// PaymentRef is the processor reference of an authorization that has
	// been started but not yet turned into a Payment row.
	PaymentRef *string `gorm:"size:255;index" json:"payment_ref,omitempty"`
	// ClientSecret is set only on the response that started an
	// authorization needing payer action.
	ClientSecret string `gorm:"-" json:"client_secret,omitempty"`

	Note              string     `gorm:"type:text" json:"note,omitempty"`
	CancelReason      string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledBy       *uuid.UUID `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	ProposedAt        *time.Time `json:"proposed_at,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ReviewRequestedAt *time.Time `json:"review_requested_at,omitempty"`

	Slot    *AvailabilitySlot `gorm:"foreignKey:SlotID;constraint:OnDelete:RESTRICT" json:"-"`
	Payment *Payment          `gorm:"foreignKey:BookingID" json:"payment,omitempty"`
	Session *Session          `gorm:"foreignKey:BookingID" json:"session,omitempty"`
}

func (b Booking) Duration() time.Duration {
	return b.EndAt.Sub(b.StartAt)
}
