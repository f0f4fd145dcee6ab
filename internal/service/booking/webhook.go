package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
)

// Outcome is what reconciling one processor event did.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeUnmatched      Outcome = "unmatched"
	OutcomeStale          Outcome = "stale"
	OutcomeIgnored        Outcome = "ignored"
)

const providerStripe = "stripe"

// ReconcilePaymentEvent applies a verified processor event once. The event id
// is recorded first so a redelivery is a no-op; when applying fails the
// record is dropped again so the processor's retry can succeed.
func (s *bookingService) ReconcilePaymentEvent(ctx context.Context, ev payment.Event) (Outcome, error) {
	log := slog.With("event_id", ev.ID, "event_type", ev.Type, "payment_ref", ev.ExternalRef)

	row := &schema.ProcessedWebhookEvent{
		Provider:    providerStripe,
		EventID:     ev.ID,
		EventType:   ev.Type,
		ExternalRef: ev.ExternalRef,
		Outcome:     "received",
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Info("payment event already processed")
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("record payment event: %w", err)
	}

	outcome, err := s.reconcile(ctx, ev)
	if err != nil {
		if derr := s.db.WithContext(ctx).Delete(row).Error; derr != nil {
			log.Error("drop failed payment event record", "error", derr)
		}
		log.Error("reconcile payment event", "error", err)
		return "", err
	}

	if err := s.db.WithContext(ctx).Model(row).Update("outcome", string(outcome)).Error; err != nil {
		log.Warn("store payment event outcome", "error", err)
	}
	if outcome == OutcomeUnmatched {
		log.Warn("payment event matches no booking")
	} else {
		log.Info("payment event reconciled", "kind", ev.Kind, "outcome", outcome)
	}
	return outcome, nil
}

func (s *bookingService) reconcile(ctx context.Context, ev payment.Event) (Outcome, error) {
	if ev.Kind == payment.EventIgnored || ev.ExternalRef == "" {
		return OutcomeIgnored, nil
	}

	b, err := s.findByRef(ctx, ev.ExternalRef)
	if errors.Is(err, ErrBookingNotFound) {
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}

	switch ev.Kind {
	case payment.EventAuthorizationSucceeded:
		if b.Payment != nil {
			return OutcomeAlreadyApplied, nil
		}
		_, err := s.ConfirmAuthorization(ctx, ev.ExternalRef)
		return settle(err)

	case payment.EventPaymentSucceeded:
		// Captures are recorded by Accept in the same transaction that
		// confirms the booking.
		if b.Payment != nil && b.Payment.Status != schema.PaymentRequiresCapture {
			return OutcomeAlreadyApplied, nil
		}
		return OutcomeStale, nil

	case payment.EventPaymentFailed, payment.EventAuthorizationCancelled:
		if b.Status == schema.BookingCancelled {
			return OutcomeAlreadyApplied, nil
		}
		if b.Status != schema.BookingPending && b.Status != schema.BookingAwaitingConfirmation {
			return OutcomeStale, nil
		}
		reason := "payment failed"
		if ev.Kind == payment.EventAuthorizationCancelled {
			reason = "payment authorization cancelled"
		}
		_, err := s.cancelUnconfirmed(ctx, b, cancellation{
			reason:    reason,
			action:    "booking.payment_failed",
			notifyTo:  b.LearnerID,
			notifType: schema.NotifBookingCancelled,
		})
		return settle(err)

	case payment.EventRefunded, payment.EventDisputeLost:
		if b.Payment == nil {
			return OutcomeStale, nil
		}
		if b.Payment.Status == schema.PaymentRefunded || b.Status == schema.BookingCancelled || b.Status == schema.BookingRefunded {
			return OutcomeAlreadyApplied, nil
		}
		if b.Status != schema.BookingConfirmed && b.Status != schema.BookingCompleted {
			return OutcomeStale, nil
		}
		total := ev.Amount
		if total <= 0 {
			total = b.Payment.AmountMinor
		}
		reason := "refunded by payment processor"
		if ev.Kind == payment.EventDisputeLost {
			reason = "dispute lost"
		}
		_, err := s.applyRefund(ctx, b, nil, total, reason)
		return settle(err)
	}
	return OutcomeIgnored, nil
}

// settle turns the result of a reconciling command into an outcome. Events
// that no longer fit the booking are stale, not failures.
func settle(err error) (Outcome, error) {
	switch {
	case err == nil:
		return OutcomeApplied, nil
	case errors.Is(err, ErrStaleState), errors.Is(err, ErrInvalidState):
		return OutcomeStale, nil
	default:
		return "", err
	}
}
