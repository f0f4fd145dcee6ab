package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/testdb"
)

type fixture struct {
	s       Service
	learner identity.Learner
	expert  identity.Expert
	booking *schema.Booking
}

func setup(t *testing.T, status schema.BookingStatus) fixture {
	t.Helper()
	db := testdb.New(t)

	lu := testdb.User(t, db, schema.RoleLearner)
	eu, profile := testdb.Expert(t, db, 60000)
	slot := testdb.Slot(t, db, eu.ID, time.Now().Add(-2*time.Hour), time.Hour, schema.SlotBooked)
	b := testdb.Booking(t, db, lu.ID, slot, status, 60000)

	sess := schema.Session{BookingID: b.ID, Provider: "zoom", ExternalMeetingID: "1", JoinURL: "https://zoom.us/j/1"}
	if err := db.Create(&sess).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}

	return fixture{
		s:       New(db),
		learner: identity.Learner{User: lu},
		expert:  identity.Expert{User: eu, Profile: profile},
		booking: b,
	}
}

func TestCreate_UpdatesExpertRating(t *testing.T) {
	f := setup(t, schema.BookingCompleted)
	ctx := context.Background()

	r, err := f.s.Create(ctx, f.learner, f.booking.ID, 4, "Super session")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.ReceiverID != f.expert.UserID() {
		t.Errorf("Expected the expert to receive the review")
	}

	if _, err := f.s.Create(ctx, f.learner, f.booking.ID, 5, ""); !errors.Is(err, ErrAlreadyReviewed) {
		t.Errorf("Expected ErrAlreadyReviewed, got %v", err)
	}

	if _, err := f.s.Create(ctx, f.expert, f.booking.ID, 5, "Engageret elev"); err != nil {
		t.Fatalf("expert review failed: %v", err)
	}

	rs := f.s.(*reviewService)
	var p schema.ExpertProfile
	rs.db.Where("user_id = ?", f.expert.UserID()).First(&p)
	if p.ReviewCount != 1 {
		t.Errorf("Expected review_count 1, got %d", p.ReviewCount)
	}
	if p.AverageRating == nil || *p.AverageRating != 4 {
		t.Errorf("Expected average rating 4, got %v", p.AverageRating)
	}

	list, err := f.s.ListForUser(ctx, f.learner.UserID(), 1, 10)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected one review for the learner, got %d, %v", len(list), err)
	}
}

func TestCreate_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("not completed", func(t *testing.T) {
		f := setup(t, schema.BookingConfirmed)
		if _, err := f.s.Create(ctx, f.learner, f.booking.ID, 5, ""); !errors.Is(err, ErrNotCompleted) {
			t.Errorf("Expected ErrNotCompleted, got %v", err)
		}
	})

	f := setup(t, schema.BookingCompleted)
	stranger := identity.Learner{User: &schema.User{}}
	stranger.User.ID = uuid.New()

	tests := []struct {
		name    string
		actor   identity.Actor
		booking uuid.UUID
		rating  int
		wantErr error
	}{
		{"rating too low", f.learner, f.booking.ID, 0, ErrInvalidRating},
		{"rating too high", f.learner, f.booking.ID, 6, ErrInvalidRating},
		{"stranger", stranger, f.booking.ID, 5, ErrNotParticipant},
		{"unknown booking", f.learner, uuid.New(), 5, ErrBookingNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.s.Create(ctx, tt.actor, tt.booking, tt.rating, ""); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
