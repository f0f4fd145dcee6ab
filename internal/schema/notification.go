package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification is an outbox record. References null out when the target
// row is removed; the notification itself survives.
type Notification struct {
	Base

	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	BookingID *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	PaymentID *uuid.UUID `gorm:"type:uuid" json:"payment_id,omitempty"`
	SessionID *uuid.UUID `gorm:"type:uuid" json:"session_id,omitempty"`

	Type     NotificationType             `gorm:"size:64;not null;index" json:"type"`
	Title    string                       `gorm:"size:255;not null" json:"title"`
	Message  string                       `gorm:"type:text;not null" json:"message"`
	Channels datatypes.JSONSlice[Channel] `json:"channels"`
	Data     datatypes.JSONMap            `json:"data,omitempty"`

	ScheduledFor *time.Time `gorm:"index" json:"scheduled_for,omitempty"`
	DispatchedAt *time.Time `gorm:"index" json:"dispatched_at,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	ErrorLog     string     `gorm:"type:text" json:"error_log,omitempty"`

	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnDelete:SET NULL" json:"-"`
	Payment *Payment `gorm:"foreignKey:PaymentID;constraint:OnDelete:SET NULL" json:"-"`
	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:SET NULL" json:"-"`
}

func (n Notification) HasChannel(ch Channel) bool {
	for _, c := range n.Channels {
		if c == ch {
			return true
		}
	}
	return false
}
