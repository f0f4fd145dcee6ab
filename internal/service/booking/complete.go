package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
)

// ---------------------------------------------------------------------------
// After the session
// ---------------------------------------------------------------------------

func (s *bookingService) Complete(ctx context.Context, bookingID uuid.UUID) (*schema.Booking, error) {
	b, err := s.load(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, b, s.now())
}

// CompleteElapsed completes every confirmed booking that ended before now.
func (s *bookingService) CompleteElapsed(ctx context.Context, now time.Time) (int, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&schema.Booking{}).
		Where("status = ? AND end_at <= ?", schema.BookingConfirmed, now.UTC()).
		Order("end_at").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("list elapsed bookings: %w", err)
	}

	n := 0
	var errs []error
	for _, id := range ids {
		b, err := s.load(ctx, s.db, id)
		if err == nil {
			_, err = s.complete(ctx, b, now)
		}
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrStaleState), errors.Is(err, ErrInvalidState):
			// completed or changed concurrently
		default:
			errs = append(errs, fmt.Errorf("complete booking %s: %w", id, err))
		}
	}
	return n, errors.Join(errs...)
}

func (s *bookingService) complete(ctx context.Context, b *schema.Booking, now time.Time) (*schema.Booking, error) {
	if err := requireStatus(b, schema.BookingConfirmed); err != nil {
		return nil, err
	}
	if now.Before(b.EndAt) {
		return nil, ErrSessionNotEnded
	}

	from := b.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// review_requested_at is set by the same conditional update, so the
		// review request goes out once.
		err := s.transition(ctx, tx, b, schema.BookingCompleted, map[string]any{
			"completed_at":        now,
			"review_requested_at": now,
		})
		if err != nil {
			return err
		}
		if b.Session != nil {
			err := tx.Model(&schema.Session{}).
				Where("id = ? AND actual_start_at IS NULL", b.Session.ID).
				Updates(map[string]any{"actual_start_at": b.StartAt, "actual_end_at": b.EndAt}).Error
			if err != nil {
				return fmt.Errorf("record session times: %w", err)
			}
			if err := s.refresh(ctx, tx, b); err != nil {
				return err
			}
		}
		return s.record(ctx, tx, nil, b, "booking.completed", nil)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	s.notify(ctx, b.LearnerID, schema.NotifReviewRequest, b, inAppMail, nil)
	s.notify(ctx, b.ExpertID, schema.NotifReviewRequest, b, inAppMail, nil)
	return b, nil
}

func (s *bookingService) MarkNoShow(ctx context.Context, expert identity.Expert, bookingID uuid.UUID) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, expert, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(b, schema.BookingConfirmed); err != nil {
		return nil, err
	}
	if s.now().Before(b.StartAt) {
		return nil, ErrSessionNotStarted
	}

	expertID := expert.UserID()
	from := b.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, b, schema.BookingNoShow, nil); err != nil {
			return err
		}
		if err := withdrawReminders(tx, b.ID); err != nil {
			return err
		}
		return s.record(ctx, tx, &expertID, b, "booking.no_show", nil)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	s.notify(ctx, b.LearnerID, schema.NotifBookingNoShow, b, inAppMail, nil)
	return b, nil
}

// ---------------------------------------------------------------------------
// Sweeping
// ---------------------------------------------------------------------------

// SweepAbandoned cancels unconfirmed bookings that can no longer complete:
// pending bookings whose authorization did not finish within the pending
// TTL, and unconfirmed bookings whose authorization expired or whose session
// time has come.
func (s *bookingService) SweepAbandoned(ctx context.Context, now time.Time) (int, error) {
	var open []schema.Booking
	err := s.db.WithContext(ctx).Preload("Payment").
		Where("status IN ?", []schema.BookingStatus{schema.BookingPending, schema.BookingAwaitingConfirmation}).
		Find(&open).Error
	if err != nil {
		return 0, fmt.Errorf("list unconfirmed bookings: %w", err)
	}

	stale := lo.Filter(open, func(b schema.Booking, _ int) bool {
		return s.abandonReason(&b, now) != ""
	})

	n := 0
	var errs []error
	for i := range stale {
		b := &stale[i]
		reason := s.abandonReason(b, now)
		typ := schema.NotifBookingCancelled
		if b.Status == schema.BookingAwaitingConfirmation {
			typ = schema.NotifBookingDeclined
		}
		_, err := s.cancelUnconfirmed(ctx, b, cancellation{
			reason:    reason,
			action:    "booking.abandoned",
			notifyTo:  b.LearnerID,
			notifType: typ,
			void:      true,
		})
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrStaleState), errors.Is(err, ErrInvalidState):
		default:
			errs = append(errs, fmt.Errorf("sweep booking %s: %w", b.ID, err))
		}
	}
	if n > 0 {
		slog.Info("swept abandoned bookings", "count", n)
	}
	return n, errors.Join(errs...)
}

func (s *bookingService) abandonReason(b *schema.Booking, now time.Time) string {
	switch {
	case !now.Before(b.StartAt):
		return "session time passed before confirmation"
	case b.Payment != nil && !now.Before(b.Payment.AuthorizationExpiresAt):
		return "payment authorization expired"
	case b.Status == schema.BookingPending && b.Payment == nil && !now.Before(b.CreatedAt.Add(s.pendingTTL)):
		return "payment was not completed in time"
	}
	return ""
}
