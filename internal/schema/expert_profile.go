package schema

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ExpertProfile extends users with role expert.
type ExpertProfile struct {
	Base

	UserID          uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	DisplayName     string                      `gorm:"size:255" json:"display_name"`
	Headline        string                      `gorm:"size:255" json:"headline"`
	Bio             string                      `gorm:"type:text" json:"bio"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	HourlyRateMinor *int64                      `json:"hourly_rate_minor,omitempty"`
	Currency        string                      `gorm:"size:3;not null" json:"currency"`
	IsPublished     bool                        `gorm:"not null;index" json:"is_published"`
	AverageRating   *float64                    `json:"average_rating,omitempty"`
	ReviewCount     int                         `gorm:"not null" json:"review_count"`
}
