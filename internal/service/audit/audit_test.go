package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/testdb"
)

func TestRecord(t *testing.T) {
	db := testdb.New(t)
	s := New(db)
	ctx := context.Background()

	learner := testdb.User(t, db, schema.RoleLearner)
	expert, _ := testdb.Expert(t, db, 100)
	slot := testdb.Slot(t, db, expert.ID, time.Now().Add(24*time.Hour), time.Hour, schema.SlotHeld)
	b := testdb.Booking(t, db, learner.ID, slot, schema.BookingPending, 100)

	if err := s.Record(ctx, nil, Entry{Action: "x"}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}

	err := s.Record(ctx, nil, Entry{
		ActorID: &learner.ID, BookingID: &b.ID,
		Action: "booking.requested", EntityType: "booking", EntityID: b.ID,
		Metadata: map[string]any{"to": "pending"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// An entry written in a rolled-back transaction does not survive.
	_ = db.Transaction(func(tx *gorm.DB) error {
		if err := s.Record(ctx, tx, Entry{BookingID: &b.ID, Action: "booking.accepted", EntityType: "booking", EntityID: b.ID}); err != nil {
			t.Fatalf("Record in tx failed: %v", err)
		}
		return errors.New("rollback")
	})

	entries, err := s.ListForBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListForBooking failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "booking.requested" {
		t.Errorf("Expected only the committed entry, got %+v", entries)
	}

	if got, _ := s.ListForBooking(ctx, uuid.New()); len(got) != 0 {
		t.Errorf("Expected no entries for unknown booking, got %d", len(got))
	}
}
