package schema

import (
	"time"

	"github.com/google/uuid"
)

// Session is the provisioned meeting of a confirmed booking.
type Session struct {
	Base

	BookingID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"booking_id"`
	Provider          string    `gorm:"size:32;not null" json:"provider"`
	ExternalMeetingID string    `gorm:"size:255;not null" json:"external_meeting_id"`
	JoinURL           string    `gorm:"type:text;not null" json:"join_url"`
	// HostURL carries a host credential and is stored encrypted.
	HostURL       string     `gorm:"type:text" json:"-"`
	IsFallback    bool       `gorm:"not null" json:"is_fallback"`
	ActualStartAt *time.Time `json:"actual_start_at,omitempty"`
	ActualEndAt   *time.Time `json:"actual_end_at,omitempty"`
}
