// Package testdb opens isolated in-memory SQLite databases with the full
// schema migrated, for service tests.
package testdb

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
)

// New returns a migrated database. The pool is capped at one connection so
// concurrent transactions serialize the way row locks would in Postgres.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := schema.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// User inserts a user with the given role.
func User(t testing.TB, db *gorm.DB, role schema.Role) *schema.User {
	t.Helper()

	ext := uuid.NewString()
	u := &schema.User{
		ExternalAuthID: &ext,
		Email:          ext + "@example.com",
		Name:           string(role) + " " + ext[:8],
		Role:           role,
		Locale:         "da-DK",
		Timezone:       "Europe/Copenhagen",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// Expert inserts an expert user with a published profile charging rate
// minor units per hour.
func Expert(t testing.TB, db *gorm.DB, rate int64) (*schema.User, *schema.ExpertProfile) {
	t.Helper()

	u := User(t, db, schema.RoleExpert)
	p := &schema.ExpertProfile{
		UserID:          u.ID,
		DisplayName:     u.Name,
		Tags:            []string{"go"},
		HourlyRateMinor: &rate,
		Currency:        "dkk",
		IsPublished:     true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return u, p
}

// Slot inserts a slot in the given state.
func Slot(t testing.TB, db *gorm.DB, expertID uuid.UUID, start time.Time, d time.Duration, state schema.SlotState) *schema.AvailabilitySlot {
	t.Helper()

	s := &schema.AvailabilitySlot{
		ExpertID: expertID,
		StartAt:  start.UTC(),
		EndAt:    start.Add(d).UTC(),
		State:    state,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return s
}

// Booking inserts a booking on slot in the given status.
func Booking(t testing.TB, db *gorm.DB, learnerID uuid.UUID, slot *schema.AvailabilitySlot, status schema.BookingStatus, amount int64) *schema.Booking {
	t.Helper()

	b := &schema.Booking{
		LearnerID:   learnerID,
		ExpertID:    slot.ExpertID,
		SlotID:      slot.ID,
		StartAt:     slot.StartAt,
		EndAt:       slot.EndAt,
		Status:      status,
		AmountMinor: amount,
		Currency:    "dkk",
		Version:     1,
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}
