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
	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
)

// cancellation describes how an unconfirmed booking is cancelled.
type cancellation struct {
	actorID   *uuid.UUID
	reason    string
	action    string
	notifyTo  uuid.UUID // uuid.Nil sends nothing
	notifType schema.NotificationType

	// void cancels the authorization at the processor first. With strict a
	// failed void aborts the cancellation.
	void   bool
	strict bool
}

// authorizationRef is the processor reference of the booking's uncaptured
// authorization, if any.
func authorizationRef(b *schema.Booking) string {
	if b.Payment != nil {
		if b.Payment.Status == schema.PaymentRequiresCapture {
			return b.Payment.ExternalRef
		}
		return ""
	}
	if b.PaymentRef != nil {
		return *b.PaymentRef
	}
	return ""
}

// cancelUnconfirmed cancels a pending or awaiting_confirmation booking and
// releases its hold.
func (s *bookingService) cancelUnconfirmed(ctx context.Context, b *schema.Booking, c cancellation) (*schema.Booking, error) {
	if err := requireStatus(b, schema.BookingPending, schema.BookingAwaitingConfirmation); err != nil {
		return nil, err
	}

	if ref := authorizationRef(b); c.void && ref != "" {
		if err := s.payments.Cancel(ctx, ref, b.ID); err != nil {
			if c.strict {
				return nil, fmt.Errorf("cancel booking: %w", err)
			}
			slog.Warn("void authorization", "booking_id", b.ID, "error", err)
		}
	}

	from := b.Status
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transition(ctx, tx, b, schema.BookingCancelled, map[string]any{
			"cancel_reason": c.reason,
			"cancelled_by":  c.actorID,
			"cancelled_at":  now,
		})
		if err != nil {
			return err
		}
		if err := s.ledger.WithTx(tx).Release(ctx, b.SlotID); err != nil {
			return err
		}
		if b.Payment != nil && b.Payment.Status == schema.PaymentRequiresCapture {
			err := tx.Model(&schema.Payment{}).
				Where("id = ? AND status = ?", b.Payment.ID, schema.PaymentRequiresCapture).
				Updates(map[string]any{"status": schema.PaymentCancelled, "cancelled_at": now}).Error
			if err != nil {
				return fmt.Errorf("cancel payment: %w", err)
			}
		}
		if err := s.refresh(ctx, tx, b); err != nil {
			return err
		}
		return s.record(ctx, tx, c.actorID, b, c.action, map[string]any{"reason": c.reason})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	if c.notifyTo != uuid.Nil {
		s.notify(ctx, c.notifyTo, c.notifType, b, inAppMail, map[string]any{notification.KeyReason: c.reason})
	}
	return b, nil
}

// ---------------------------------------------------------------------------
// Cancelling
// ---------------------------------------------------------------------------

func (s *bookingService) Cancel(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*schema.Booking, error) {
	b, err := s.loadFor(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	actorID := actor.UserID()
	counterpart := b.ExpertID
	if actorID == b.ExpertID {
		counterpart = b.LearnerID
	}

	switch b.Status {
	case schema.BookingPending, schema.BookingAwaitingConfirmation:
		// An expert has not seen a fresh request yet.
		if b.Status == schema.BookingPending && b.ProposedAt == nil && counterpart == b.ExpertID {
			counterpart = uuid.Nil
		}
		return s.cancelUnconfirmed(ctx, b, cancellation{
			actorID:   &actorID,
			reason:    reason,
			action:    "booking.cancelled",
			notifyTo:  counterpart,
			notifType: schema.NotifBookingCancelled,
			void:      true,
			strict:    true,
		})
	case schema.BookingConfirmed:
		return s.cancelConfirmed(ctx, actor, b, counterpart, reason)
	default:
		return nil, requireStatus(b, schema.BookingPending, schema.BookingAwaitingConfirmation, schema.BookingConfirmed)
	}
}

func (s *bookingService) cancelConfirmed(ctx context.Context, actor identity.Actor, b *schema.Booking, counterpart uuid.UUID, reason string) (*schema.Booking, error) {
	now := s.now()
	if !now.Before(b.StartAt) {
		return nil, ErrSessionStarted
	}
	if b.Payment == nil {
		return nil, ErrNoPayment
	}

	refundable := b.Payment.AmountMinor - b.Payment.RefundedMinor
	amount := s.policy.RefundAmount(actor, b, b.StartAt.Sub(now))
	amount = max(0, min(amount, refundable))
	if amount > 0 {
		refunded, err := s.payments.Refund(ctx, b.Payment.ExternalRef, b.ID, amount)
		if err != nil {
			return nil, fmt.Errorf("cancel booking: %w", err)
		}
		if refunded > 0 {
			amount = refunded
		}
	}

	actorID := actor.UserID()
	from := b.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transition(ctx, tx, b, schema.BookingCancelled, map[string]any{
			"cancel_reason": reason,
			"cancelled_by":  actorID,
			"cancelled_at":  now,
		})
		if err != nil {
			return err
		}
		if err := s.ledger.WithTx(tx).Unbook(ctx, b.SlotID); err != nil {
			return err
		}
		if err := withdrawReminders(tx, b.ID); err != nil {
			return err
		}
		if amount > 0 {
			updates := map[string]any{
				"refunded_minor": gorm.Expr("refunded_minor + ?", amount),
				"refunded_at":    now,
			}
			if amount >= refundable {
				updates["status"] = schema.PaymentRefunded
			}
			if err := tx.Model(&schema.Payment{}).Where("id = ?", b.Payment.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
		}
		if err := s.refresh(ctx, tx, b); err != nil {
			return err
		}
		return s.record(ctx, tx, &actorID, b, "booking.cancelled", map[string]any{
			"reason":       reason,
			"refund_minor": amount,
		})
	})
	if err != nil {
		if amount > 0 {
			s.recordOrphanedRefund(ctx, b, amount, refundable)
		}
		return nil, err
	}

	s.committed(ctx, from, b)
	if b.Session != nil {
		s.meetings.DeleteMeeting(ctx, b.Session.ExternalMeetingID)
	}
	s.notify(ctx, counterpart, schema.NotifBookingCancelled, b, inAppMail, map[string]any{notification.KeyReason: reason})
	return b, nil
}

// ---------------------------------------------------------------------------
// Refunding
// ---------------------------------------------------------------------------

func (s *bookingService) Refund(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*schema.Booking, error) {
	var (
		b   *schema.Booking
		err error
	)
	if actor == nil {
		b, err = s.load(ctx, s.db, bookingID)
	} else {
		b, err = s.loadFor(ctx, actor, bookingID)
		if err == nil {
			if _, ok := actor.(identity.Expert); !ok {
				err = ErrForbidden
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if err := requireStatus(b, schema.BookingConfirmed, schema.BookingCompleted); err != nil {
		return nil, err
	}
	if b.Payment == nil || b.Payment.Status != schema.PaymentPaid {
		return nil, ErrNoPayment
	}

	refunded, err := s.payments.Refund(ctx, b.Payment.ExternalRef, b.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("refund booking: %w", err)
	}
	if refunded <= 0 {
		refunded = b.Payment.AmountMinor - b.Payment.RefundedMinor
	}

	var actorID *uuid.UUID
	if actor != nil {
		id := actor.UserID()
		actorID = &id
	}
	out, err := s.applyRefund(ctx, b, actorID, b.Payment.RefundedMinor+refunded, reason)
	if errors.Is(err, ErrStaleState) {
		// The processor's own refund event may have been applied first.
		cur, lerr := s.load(ctx, s.db, b.ID)
		if lerr == nil && cur.Status == schema.BookingRefunded {
			return cur, nil
		}
	}
	return out, err
}

// applyRefund records a refund the processor already made. total is the
// amount refunded so far.
func (s *bookingService) applyRefund(ctx context.Context, b *schema.Booking, actorID *uuid.UUID, total int64, reason string) (*schema.Booking, error) {
	now := s.now()
	future := now.Before(b.StartAt)
	from := b.Status

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, b, schema.BookingRefunded, map[string]any{"cancel_reason": reason}); err != nil {
			return err
		}
		if b.Payment != nil {
			err := tx.Model(&schema.Payment{}).Where("id = ?", b.Payment.ID).Updates(map[string]any{
				"status":         schema.PaymentRefunded,
				"refunded_minor": total,
				"refunded_at":    now,
			}).Error
			if err != nil {
				return fmt.Errorf("record refund: %w", err)
			}
		}
		if future {
			if err := s.ledger.WithTx(tx).Unbook(ctx, b.SlotID); err != nil {
				return err
			}
		}
		if err := withdrawReminders(tx, b.ID); err != nil {
			return err
		}
		if err := s.refresh(ctx, tx, b); err != nil {
			return err
		}
		return s.record(ctx, tx, actorID, b, "booking.refunded", map[string]any{
			"reason":         reason,
			"refunded_minor": total,
		})
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, from, b)
	if future && b.Session != nil {
		s.meetings.DeleteMeeting(ctx, b.Session.ExternalMeetingID)
	}
	s.notify(ctx, b.LearnerID, schema.NotifBookingRefunded, b, inAppMail, map[string]any{
		notification.KeyReason: reason,
		notification.KeyAmount: total,
	})
	return b, nil
}

// recordOrphanedRefund books a refund the processor made for a cancellation
// that then failed to commit. The payment row is only touched when nothing
// else recorded a refund in the meantime.
func (s *bookingService) recordOrphanedRefund(ctx context.Context, b *schema.Booking, amount, refundable int64) {
	updates := map[string]any{
		"refunded_minor": gorm.Expr("refunded_minor + ?", amount),
		"refunded_at":    s.now(),
	}
	if amount >= refundable {
		updates["status"] = schema.PaymentRefunded
	}
	res := s.db.WithContext(ctx).Model(&schema.Payment{}).
		Where("id = ? AND refunded_minor = ?", b.Payment.ID, b.Payment.RefundedMinor).
		Updates(updates)
	if res.Error != nil {
		slog.Error("record orphaned refund", "booking_id", b.ID, "refund_minor", amount, "error", res.Error)
		return
	}
	if res.RowsAffected == 1 {
		err := s.record(ctx, s.db, nil, b, "booking.refund_orphaned", map[string]any{"refund_minor": amount})
		if err != nil {
			slog.Warn("audit orphaned refund", "booking_id", b.ID, "error", err)
		}
	}
	slog.Error("refunded a cancellation that did not commit",
		"booking_id", b.ID, "payment_ref", b.Payment.ExternalRef, "refund_minor", amount, "recorded", res.RowsAffected == 1)
}

// withdrawReminders drops the booking's scheduled notifications that have
// not gone out yet.
func withdrawReminders(tx *gorm.DB, bookingID uuid.UUID) error {
	err := tx.Where("booking_id = ? AND scheduled_for IS NOT NULL AND dispatched_at IS NULL", bookingID).
		Delete(&schema.Notification{}).Error
	if err != nil {
		return fmt.Errorf("withdraw reminders: %w", err)
	}
	return nil
}
