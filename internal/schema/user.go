package schema

import "gorm.io/gorm"

// User is an identity record. Rows are soft-deleted only, bookings keep
// pointing at them.
type User struct {
	Base

	ExternalAuthID *string `gorm:"size:255;uniqueIndex" json:"external_auth_id,omitempty"`
	Email          string  `gorm:"size:320;not null;uniqueIndex" json:"email"`
	Name           string  `gorm:"size:255" json:"name"`
	Role           Role    `gorm:"size:16;not null" json:"role"`
	Locale         string  `gorm:"size:16;not null" json:"locale"`
	Timezone       string  `gorm:"size:64;not null" json:"timezone"`

	ExpertProfile *ExpertProfile `gorm:"foreignKey:UserID" json:"expert_profile,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
