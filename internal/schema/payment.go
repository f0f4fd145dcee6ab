package schema

import (
	"time"

	"github.com/google/uuid"
)

// Payment is owned by exactly one booking and is never deleted.
type Payment struct {
	Base

	BookingID              uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"booking_id"`
	ExternalRef            string        `gorm:"size:255;not null;uniqueIndex" json:"external_ref"`
	AmountMinor            int64         `gorm:"not null" json:"amount_minor"`
	RefundedMinor          int64         `gorm:"not null" json:"refunded_minor"`
	Currency               string        `gorm:"size:3;not null" json:"currency"`
	Status                 PaymentStatus `gorm:"size:32;not null;index" json:"status"`
	AuthorizedAt           time.Time     `gorm:"not null" json:"authorized_at"`
	AuthorizationExpiresAt time.Time     `gorm:"not null" json:"authorization_expires_at"`
	CapturedAt             *time.Time    `json:"captured_at,omitempty"`
	CancelledAt            *time.Time    `json:"cancelled_at,omitempty"`
	RefundedAt             *time.Time    `json:"refunded_at,omitempty"`
}
