package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/service/meeting"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
	"github.com/Alijeyrad/rookie_backend/pkg/crypto"
)

// ---------------------------------------------------------------------------
// Expert decisions
// ---------------------------------------------------------------------------

func (s *bookingService) Accept(ctx context.Context, expert identity.Expert, bookingID uuid.UUID) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, expert, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(b, schema.BookingAwaitingConfirmation); err != nil {
		return nil, err
	}
	if b.Payment == nil || b.Payment.Status != schema.PaymentRequiresCapture {
		return nil, fmt.Errorf("payment is not capturable: %w", ErrInvalidState)
	}

	now := s.now()
	if !now.Before(b.StartAt) {
		return nil, ErrSessionStarted
	}
	if !now.Before(b.Payment.AuthorizationExpiresAt) {
		s.expire(ctx, b)
		return nil, fmt.Errorf("accept booking: %w", payment.ErrAuthorizationExpired)
	}

	ref := b.Payment.ExternalRef
	if err := s.payments.Capture(ctx, ref, b.ID); err != nil {
		if errors.Is(err, payment.ErrAuthorizationExpired) {
			s.expire(ctx, b)
		}
		return nil, fmt.Errorf("accept booking: %w", err)
	}

	m := s.meetings.CreateMeeting(ctx, "Coaching session "+b.ID.String()[:8], b.StartAt, b.Duration())

	expertID := expert.UserID()
	from := b.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, b, schema.BookingConfirmed, map[string]any{"confirmed_at": now}); err != nil {
			return err
		}
		if err := s.ledger.WithTx(tx).Book(ctx, b.SlotID); err != nil {
			return err
		}

		res := tx.Model(&schema.Payment{}).
			Where("id = ? AND status = ?", b.Payment.ID, schema.PaymentRequiresCapture).
			Updates(map[string]any{"status": schema.PaymentPaid, "captured_at": now})
		if res.Error != nil {
			return fmt.Errorf("mark payment paid: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrStaleState
		}

		sess := &schema.Session{
			BookingID:         b.ID,
			Provider:          meeting.ProviderZoom,
			ExternalMeetingID: m.ID,
			JoinURL:           m.JoinURL,
			HostURL:           s.sealHostURL(b.ID, m.HostURL),
			IsFallback:        m.Fallback,
		}
		if err := tx.Create(sess).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := s.refresh(ctx, tx, b); err != nil {
			return err
		}
		return s.record(ctx, tx, &expertID, b, "booking.accepted", map[string]any{
			"meeting_id": m.ID,
			"fallback":   m.Fallback,
		})
	})
	if err != nil {
		s.meetings.DeleteMeeting(ctx, m.ID)
		s.compensateCapture(ctx, bookingID, ref)
		return nil, err
	}

	s.committed(ctx, from, b)
	if err := s.notifier.ScheduleSessionReminders(ctx, b, s.notificationData(ctx, b)); err != nil {
		slog.Warn("schedule session reminders", "booking_id", b.ID, "error", err)
	}
	s.notify(ctx, b.LearnerID, schema.NotifBookingAccepted, b, inAppMail, nil)
	s.notify(ctx, b.LearnerID, schema.NotifBookingConfirmedICS, b, mailOnly, nil)
	s.notify(ctx, b.ExpertID, schema.NotifBookingConfirmedICS, b, mailOnly, nil)
	return b, nil
}

// compensateCapture refunds a capture whose confirming transaction failed,
// unless the booking got confirmed anyway or can still be accepted again
// (a retried capture reuses the same idempotency key).
func (s *bookingService) compensateCapture(ctx context.Context, bookingID uuid.UUID, ref string) {
	cur, err := s.load(ctx, s.db, bookingID)
	if err != nil {
		slog.Error("load booking for capture compensation", "booking_id", bookingID, "error", err)
		return
	}
	switch cur.Status {
	case schema.BookingConfirmed, schema.BookingAwaitingConfirmation:
		return
	}

	refunded, err := s.payments.Refund(ctx, ref, bookingID, 0)
	if err != nil {
		slog.Error("refund orphaned capture", "booking_id", bookingID, "payment_ref", ref, "error", err)
		return
	}
	if cur.Payment != nil {
		err := s.db.WithContext(ctx).Model(&schema.Payment{}).Where("id = ?", cur.Payment.ID).Updates(map[string]any{
			"status":         schema.PaymentRefunded,
			"refunded_minor": refunded,
			"refunded_at":    s.now(),
		}).Error
		if err != nil {
			slog.Error("record capture compensation", "booking_id", bookingID, "error", err)
		}
	}
	slog.Warn("refunded capture of a booking that was not confirmed",
		"booking_id", bookingID, "status", cur.Status, "refunded_minor", refunded)
}

// expire declines a booking whose authorization can no longer be captured.
func (s *bookingService) expire(ctx context.Context, b *schema.Booking) {
	_, err := s.cancelUnconfirmed(ctx, b, cancellation{
		reason:    "payment authorization expired",
		action:    "booking.authorization_expired",
		notifyTo:  b.LearnerID,
		notifType: schema.NotifBookingDeclined,
		void:      true,
	})
	if err != nil {
		slog.Error("decline expired booking", "booking_id", b.ID, "error", err)
	}
}

func (s *bookingService) sealHostURL(bookingID uuid.UUID, raw string) string {
	if raw == "" || len(s.key) == 0 {
		return ""
	}
	sealed, err := crypto.Encrypt(s.key, raw, bookingID.String())
	if err != nil {
		slog.Warn("encrypt host url", "error", err)
		return ""
	}
	return sealed
}

func (s *bookingService) Decline(ctx context.Context, expert identity.Expert, bookingID uuid.UUID, reason string) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, expert, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(b, schema.BookingAwaitingConfirmation); err != nil {
		return nil, err
	}
	expertID := expert.UserID()
	return s.cancelUnconfirmed(ctx, b, cancellation{
		actorID:   &expertID,
		reason:    reason,
		action:    "booking.declined",
		notifyTo:  b.LearnerID,
		notifType: schema.NotifBookingDeclined,
		void:      true,
		strict:    true,
	})
}

// ---------------------------------------------------------------------------
// Proposals
// ---------------------------------------------------------------------------

// ProposeTime moves the booking to another slot of the same expert and
// hands it back to the learner. The authorization is kept.
func (s *bookingService) ProposeTime(ctx context.Context, expert identity.Expert, bookingID, slotID uuid.UUID) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, expert, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(b, schema.BookingAwaitingConfirmation); err != nil {
		return nil, err
	}
	if b.Payment == nil {
		return nil, fmt.Errorf("booking has no authorization: %w", ErrInvalidState)
	}
	if slotID == b.SlotID {
		return nil, ErrSlotMismatch
	}

	expertID := expert.UserID()
	oldSlotID := b.SlotID
	from := b.Status
	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		slot, err := ledger.Hold(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.ExpertID != b.ExpertID || slot.Duration() != b.Duration() {
			return ErrSlotMismatch
		}
		if !slot.StartAt.After(now) {
			return ErrSlotInPast
		}
		if err := ledger.Release(ctx, oldSlotID); err != nil {
			return err
		}

		err = s.transition(ctx, tx, b, schema.BookingPending, map[string]any{
			"slot_id":     slot.ID,
			"start_at":    slot.StartAt,
			"end_at":      slot.EndAt,
			"proposed_at": now,
		})
		if err != nil {
			return err
		}
		return s.record(ctx, tx, &expertID, b, "booking.proposed", map[string]any{
			"from_slot_id": oldSlotID.String(),
			"to_slot_id":   slot.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	s.notify(ctx, b.LearnerID, schema.NotifBookingProposed, b, inAppMail, nil)
	return b, nil
}

func (s *bookingService) RespondToProposal(ctx context.Context, learner identity.Learner, bookingID uuid.UUID, accept bool) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, learner, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != schema.BookingPending || b.ProposedAt == nil || b.Payment == nil {
		return nil, ErrNoProposal
	}

	learnerID := learner.UserID()
	if !accept {
		return s.cancelUnconfirmed(ctx, b, cancellation{
			actorID:   &learnerID,
			reason:    "proposal rejected",
			action:    "booking.proposal_rejected",
			notifyTo:  b.ExpertID,
			notifType: schema.NotifBookingRejected,
			void:      true,
			strict:    true,
		})
	}

	if !s.now().Before(b.Payment.AuthorizationExpiresAt) {
		s.expire(ctx, b)
		return nil, fmt.Errorf("accept proposal: %w", payment.ErrAuthorizationExpired)
	}

	from := b.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, b, schema.BookingAwaitingConfirmation, map[string]any{"proposed_at": nil}); err != nil {
			return err
		}
		return s.record(ctx, tx, &learnerID, b, "booking.proposal_accepted", nil)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	s.notify(ctx, b.ExpertID, schema.NotifBookingAwaitingConfirmation, b, inAppMail, nil)
	return b, nil
}
