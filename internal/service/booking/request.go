package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
)

// ---------------------------------------------------------------------------
// Requesting and authorizing
// ---------------------------------------------------------------------------

func (s *bookingService) Request(ctx context.Context, learner identity.Learner, in RequestInput) (*schema.Booking, error) {
	learnerID := learner.UserID()
	now := s.now()

	var b *schema.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, err := s.ledger.WithTx(tx).Hold(ctx, in.SlotID)
		if err != nil {
			return err
		}
		if !slot.StartAt.After(now) {
			return ErrSlotInPast
		}

		var profile schema.ExpertProfile
		if err := tx.Where("user_id = ?", slot.ExpertID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExpertUnavailable
			}
			return fmt.Errorf("query expert profile: %w", err)
		}
		if !profile.IsPublished || profile.HourlyRateMinor == nil || *profile.HourlyRateMinor <= 0 {
			return ErrExpertUnavailable
		}

		b = &schema.Booking{
			LearnerID:   learnerID,
			ExpertID:    slot.ExpertID,
			SlotID:      slot.ID,
			StartAt:     slot.StartAt,
			EndAt:       slot.EndAt,
			Status:      schema.BookingPending,
			AmountMinor: price(*profile.HourlyRateMinor, slot.Duration()),
			Currency:    profile.Currency,
			Version:     1,
			Note:        in.Note,
		}
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		if err := s.checkInvariant(ctx, tx, b); err != nil {
			return err
		}
		return s.record(ctx, tx, &learnerID, b, "booking.requested", map[string]any{"slot_id": slot.ID.String()})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "", b)
	return s.authorize(ctx, b, &learnerID, in.PaymentMethod)
}

// Authorize retries the authorization of a pending booking.
func (s *bookingService) Authorize(ctx context.Context, learner identity.Learner, bookingID uuid.UUID, paymentMethod string) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, learner, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(b, schema.BookingPending); err != nil {
		return nil, err
	}
	if b.Payment != nil {
		return nil, fmt.Errorf("booking already has an authorization: %w", ErrInvalidState)
	}
	learnerID := learner.UserID()
	return s.authorize(ctx, b, &learnerID, paymentMethod)
}

func (s *bookingService) authorize(ctx context.Context, b *schema.Booking, actorID *uuid.UUID, paymentMethod string) (*schema.Booking, error) {
	var existing string
	if b.PaymentRef != nil {
		existing = *b.PaymentRef
	}
	auth, err := s.payments.Authorize(ctx, payment.AuthorizeRequest{
		BookingID:     b.ID,
		Amount:        b.AmountMinor,
		Currency:      b.Currency,
		PaymentMethod: paymentMethod,
		Description:   "Coaching session " + b.StartAt.Format(time.RFC3339),
		Metadata: map[string]string{
			"learner_id": b.LearnerID.String(),
			"expert_id":  b.ExpertID.String(),
		},
		ExistingRef: existing,
	})
	switch {
	case errors.Is(err, payment.ErrDeclined):
		_, cerr := s.cancelUnconfirmed(ctx, b, cancellation{
			reason:    "payment declined",
			action:    "booking.payment_declined",
			notifyTo:  b.LearnerID,
			notifType: schema.NotifBookingCancelled,
		})
		if cerr != nil {
			slog.Error("cancel declined booking", "booking_id", b.ID, "error", cerr)
		}
		return nil, err
	case err != nil:
		return nil, &PendingError{BookingID: b.ID, Err: err}
	}

	if auth.Status == payment.StatusRequiresCapture {
		return s.markAuthorized(ctx, b, actorID, auth.Ref, auth.AuthorizedAt, auth.ExpiresAt)
	}

	// The learner still has to complete the authorization (3-D Secure) with
	// the client secret; the processor webhook confirms it later.
	res := s.db.WithContext(ctx).Model(&schema.Booking{}).
		Where("id = ? AND status = ? AND version = ?", b.ID, schema.BookingPending, b.Version).
		Updates(map[string]any{
			"payment_ref": auth.Ref,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("store payment reference: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, ErrStaleState
	}
	if err := s.refresh(ctx, s.db, b); err != nil {
		return nil, err
	}
	b.ClientSecret = auth.ClientSecret
	return b, nil
}

// ConfirmAuthorization completes a pending authorization reported by the
// processor. Repeated confirmations of the same reference return the booking
// unchanged.
func (s *bookingService) ConfirmAuthorization(ctx context.Context, ref string) (*schema.Booking, error) {
	b, err := s.findByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if b.Payment != nil && b.Payment.ExternalRef == ref {
		return b, nil
	}
	if b.Status == schema.BookingCancelled {
		if err := s.payments.Cancel(ctx, ref, b.ID); err != nil {
			slog.Warn("void authorization of cancelled booking", "booking_id", b.ID, "error", err)
		}
	}
	if err := requireStatus(b, schema.BookingPending); err != nil {
		return nil, err
	}
	now := s.now()
	return s.markAuthorized(ctx, b, nil, ref, now, now.Add(s.authTTL))
}

// markAuthorized moves a pending booking to awaiting_confirmation and stores
// its Payment.
func (s *bookingService) markAuthorized(ctx context.Context, b *schema.Booking, actorID *uuid.UUID, ref string, authorizedAt, expiresAt time.Time) (*schema.Booking, error) {
	from := b.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if b.Payment != nil {
			return fmt.Errorf("booking already has an authorization: %w", ErrInvalidState)
		}
		if err := s.transition(ctx, tx, b, schema.BookingAwaitingConfirmation, map[string]any{"payment_ref": ref}); err != nil {
			return err
		}

		p := &schema.Payment{
			BookingID:              b.ID,
			ExternalRef:            ref,
			AmountMinor:            b.AmountMinor,
			Currency:               b.Currency,
			Status:                 schema.PaymentRequiresCapture,
			AuthorizedAt:           authorizedAt.UTC(),
			AuthorizationExpiresAt: expiresAt.UTC(),
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		b.Payment = p
		return s.record(ctx, tx, actorID, b, "booking.authorized", map[string]any{"payment_ref": ref})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	s.notify(ctx, b.ExpertID, schema.NotifBookingAwaitingConfirmation, b, inAppMail, nil)
	s.notify(ctx, b.LearnerID, schema.NotifBookingCreated, b, inApp, nil)
	return b, nil
}

// findByRef finds the booking of a processor reference, through its Payment
// or an authorization still in flight.
func (s *bookingService) findByRef(ctx context.Context, ref string) (*schema.Booking, error) {
	if ref == "" {
		return nil, ErrBookingNotFound
	}

	var p schema.Payment
	err := s.db.WithContext(ctx).Select("booking_id").Where("external_ref = ?", ref).First(&p).Error
	if err == nil {
		return s.load(ctx, s.db, p.BookingID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query payment: %w", err)
	}

	var ids []uuid.UUID
	err = s.db.WithContext(ctx).Model(&schema.Booking{}).
		Where("payment_ref = ?", ref).
		Order("created_at DESC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query booking by payment reference: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrBookingNotFound
	}
	return s.load(ctx, s.db, ids[0])
}

// price charges the hourly rate pro rata, in whole minutes.
func price(hourly int64, d time.Duration) int64 {
	return hourly * int64(d/time.Minute) / 60
}
