package schema

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is append-only.
type AuditLog struct {
	CreatedOnly

	ActorID   *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	BookingID *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	PaymentID *uuid.UUID `gorm:"type:uuid" json:"payment_id,omitempty"`
	SessionID *uuid.UUID `gorm:"type:uuid" json:"session_id,omitempty"`

	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"entity_id"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`

	Actor   *User    `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"-"`
	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnDelete:SET NULL" json:"-"`
	Payment *Payment `gorm:"foreignKey:PaymentID;constraint:OnDelete:SET NULL" json:"-"`
	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:SET NULL" json:"-"`
}
