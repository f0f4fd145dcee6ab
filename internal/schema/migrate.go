package schema

import "gorm.io/gorm"

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&User{},
		&ExpertProfile{},
		&RecurringRule{},
		&AvailabilitySlot{},
		&Booking{},
		&Payment{},
		&Session{},
		&Review{},
		&Notification{},
		&AuditLog{},
		&ProcessedWebhookEvent{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
