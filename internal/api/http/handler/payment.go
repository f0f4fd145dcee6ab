package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
	"github.com/Alijeyrad/rookie_backend/pkg/reqctx"
)

// HeaderStripeSignature carries the processor's webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

// WebhookMetrics counts processed payment events.
type WebhookMetrics interface {
	RecordWebhook(ctx context.Context, kind, outcome string)
}

type PaymentHandler struct {
	payments payment.Service
	bookings booking.Service
	metrics  WebhookMetrics
}

func NewPaymentHandler(payments payment.Service, bookings booking.Service, metrics WebhookMetrics) *PaymentHandler {
	return &PaymentHandler{payments: payments, bookings: bookings, metrics: metrics}
}

// POST /webhooks/payments
func (h *PaymentHandler) Webhook(c fiber.Ctx) error {
	ctx := c.Context()

	ev, err := h.payments.ParseEvent(c.Body(), c.Get(HeaderStripeSignature))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.record(ctx, "unknown", "rejected")
			return badRequest(c, err.Error())
		}
		return badRequest(c, "invalid event payload")
	}

	outcome, err := h.bookings.ReconcilePaymentEvent(ctx, *ev)
	if err != nil {
		h.record(ctx, string(ev.Kind), "failed")
		// a non-2xx answer makes the processor redeliver the event
		return internalError(c, err)
	}

	slog.InfoContext(ctx, "payment event processed",
		append(reqctx.LogAttrs(ctx), "event_id", ev.ID, "kind", ev.Kind, "outcome", outcome)...)
	h.record(ctx, string(ev.Kind), string(outcome))
	return ok(c, fiber.Map{"outcome": outcome})
}

func (h *PaymentHandler) record(ctx context.Context, kind, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(ctx, kind, outcome)
	}
}
