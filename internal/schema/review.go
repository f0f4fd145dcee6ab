package schema

import "github.com/google/uuid"

type Review struct {
	Base

	SessionID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_session_giver,priority:1" json:"session_id"`
	GiverID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_session_giver,priority:2" json:"giver_id"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	ReceiverID uuid.UUID `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment,omitempty"`
}
