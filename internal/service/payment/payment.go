package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/pkg/constants"
	"github.com/Alijeyrad/rookie_backend/pkg/stripepay"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type AuthorizeRequest struct {
	BookingID     uuid.UUID
	Amount        int64
	Currency      string
	PaymentMethod string
	Description   string
	Metadata      map[string]string
	// ExistingRef continues an intent created by an earlier attempt instead
	// of creating another one.
	ExistingRef string
}

type AuthorizationStatus string

const (
	StatusRequiresCapture       AuthorizationStatus = "requires_capture"
	StatusRequiresAction        AuthorizationStatus = "requires_action"
	StatusRequiresPaymentMethod AuthorizationStatus = "requires_payment_method"
)

type Authorization struct {
	Ref          string
	Status       AuthorizationStatus
	Amount       int64
	Currency     string
	AuthorizedAt time.Time
	ExpiresAt    time.Time
	// ClientSecret is handed to the payer to finish 3-D Secure. It is never
	// persisted.
	ClientSecret string
}

type EventKind string

const (
	EventAuthorizationSucceeded EventKind = "authorization_succeeded"
	EventPaymentSucceeded       EventKind = "payment_succeeded"
	EventPaymentFailed          EventKind = "payment_failed"
	EventAuthorizationCancelled EventKind = "authorization_cancelled"
	EventRefunded               EventKind = "refunded"
	EventDisputeLost            EventKind = "dispute_lost"
	EventIgnored                EventKind = "ignored"
)

// Event is a verified processor event reduced to what reconciliation needs.
type Event struct {
	ID          string
	Type        string
	Kind        EventKind
	ExternalRef string
	Amount      int64
}

// Gateway is the processor client. *stripepay.Client implements it.
type Gateway interface {
	CreateAuthorization(ctx context.Context, p stripepay.AuthorizeParams) (*stripepay.Intent, error)
	ConfirmIntent(ctx context.Context, intentID, paymentMethod, idempotencyKey string) (*stripepay.Intent, error)
	GetIntent(ctx context.Context, intentID string) (*stripepay.Intent, error)
	Capture(ctx context.Context, intentID, idempotencyKey string) (*stripepay.Intent, error)
	Cancel(ctx context.Context, intentID, idempotencyKey string) (*stripepay.Intent, error)
	Refund(ctx context.Context, intentID string, amount int64, idempotencyKey string) (*stripepay.Refund, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error)
	Capture(ctx context.Context, ref string, bookingID uuid.UUID) error
	Cancel(ctx context.Context, ref string, bookingID uuid.UUID) error
	// Refund refunds amount, or the full captured amount when zero, and
	// returns the refunded amount.
	Refund(ctx context.Context, ref string, bookingID uuid.UUID, amount int64) (int64, error)
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// IdempotencyKey derives the processor idempotency key of op on a booking.
func IdempotencyKey(bookingID uuid.UUID, op string) string {
	return "booking:" + bookingID.String() + ":" + op
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type paymentService struct {
	gw       Gateway
	currency string
	authTTL  time.Duration
	now      func() time.Time
}

func New(gw Gateway, cfg *config.Config) Service {
	currency := cfg.Stripe.Currency
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	ttl := cfg.Booking.AuthorizationTTL()
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &paymentService{
		gw:       gw,
		currency: currency,
		authTTL:  ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.currency
	}

	meta := map[string]string{"booking_id": req.BookingID.String()}
	for k, v := range req.Metadata {
		meta[k] = v
	}

	var (
		pi  *stripepay.Intent
		err error
	)
	switch {
	case req.ExistingRef != "" && req.PaymentMethod != "":
		pi, err = s.gw.ConfirmIntent(ctx, req.ExistingRef, req.PaymentMethod,
			IdempotencyKey(req.BookingID, "confirm:"+req.PaymentMethod))
	case req.ExistingRef != "":
		pi, err = s.gw.GetIntent(ctx, req.ExistingRef)
	default:
		// A retry with the same payment method replays the first attempt; a
		// different one needs its own key.
		op := "authorize"
		if req.PaymentMethod != "" {
			op += ":" + req.PaymentMethod
		}
		pi, err = s.gw.CreateAuthorization(ctx, stripepay.AuthorizeParams{
			Amount:         req.Amount,
			Currency:       currency,
			PaymentMethod:  req.PaymentMethod,
			Description:    req.Description,
			IdempotencyKey: IdempotencyKey(req.BookingID, op),
			Metadata:       meta,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("authorize payment: %w", mapError(err))
	}

	now := s.now()
	auth := &Authorization{
		Ref:          pi.ID,
		Amount:       pi.Amount,
		Currency:     currency,
		AuthorizedAt: now,
		ExpiresAt:    now.Add(s.authTTL),
		ClientSecret: pi.ClientSecret,
	}
	switch stripe.PaymentIntentStatus(pi.Status) {
	case stripe.PaymentIntentStatusRequiresCapture:
		auth.Status = StatusRequiresCapture
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation, stripe.PaymentIntentStatusProcessing:
		auth.Status = StatusRequiresAction
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		auth.Status = StatusRequiresPaymentMethod
	case stripe.PaymentIntentStatusCanceled:
		return nil, fmt.Errorf("authorize payment: %w", ErrDeclined)
	default:
		return nil, fmt.Errorf("authorize payment: unexpected intent status %q: %w", pi.Status, ErrUpstream)
	}
	return auth, nil
}

func (s *paymentService) Capture(ctx context.Context, ref string, bookingID uuid.UUID) error {
	pi, err := s.gw.Capture(ctx, ref, IdempotencyKey(bookingID, "capture"))
	if err != nil {
		return fmt.Errorf("capture payment: %w", mapError(err))
	}
	if stripe.PaymentIntentStatus(pi.Status) != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("capture payment: intent status %q: %w", pi.Status, ErrUpstream)
	}
	return nil
}

func (s *paymentService) Cancel(ctx context.Context, ref string, bookingID uuid.UUID) error {
	_, err := s.gw.Cancel(ctx, ref, IdempotencyKey(bookingID, "cancel"))
	if err == nil {
		return nil
	}
	// Cancelling an authorization the processor already voided is done.
	if errors.Is(err, stripepay.ErrAuthorizationExpired) {
		return nil
	}
	return fmt.Errorf("cancel authorization: %w", mapError(err))
}

func (s *paymentService) Refund(ctx context.Context, ref string, bookingID uuid.UUID, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	r, err := s.gw.Refund(ctx, ref, amount, IdempotencyKey(bookingID, "refund"))
	if err != nil {
		return 0, fmt.Errorf("refund payment: %w", mapError(err))
	}
	return r.Amount, nil
}

func (s *paymentService) ParseEvent(payload []byte, signature string) (*Event, error) {
	ev, err := s.gw.ConstructEvent(payload, signature)
	if err != nil {
		return nil, fmt.Errorf("parse event: %w", ErrInvalidSignature)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type), Kind: EventIgnored}
	if ev.Data == nil {
		return out, nil
	}

	switch ev.Type {
	case "payment_intent.amount_capturable_updated",
		"payment_intent.succeeded",
		"payment_intent.payment_failed",
		"payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.ExternalRef = pi.ID
		switch ev.Type {
		case "payment_intent.amount_capturable_updated":
			out.Kind, out.Amount = EventAuthorizationSucceeded, pi.AmountCapturable
		case "payment_intent.succeeded":
			out.Kind, out.Amount = EventPaymentSucceeded, pi.AmountReceived
		case "payment_intent.payment_failed":
			out.Kind, out.Amount = EventPaymentFailed, pi.Amount
		default:
			out.Kind, out.Amount = EventAuthorizationCancelled, pi.Amount
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.ExternalRef = ch.PaymentIntent.ID
		}
		out.Kind, out.Amount = EventRefunded, ch.AmountRefunded

	case "charge.dispute.closed":
		var d stripe.Dispute
		if err := json.Unmarshal(ev.Data.Raw, &d); err != nil {
			return nil, fmt.Errorf("decode dispute: %w", err)
		}
		if d.Status != stripe.DisputeStatusLost {
			return out, nil
		}
		if d.PaymentIntent != nil {
			out.ExternalRef = d.PaymentIntent.ID
		}
		out.Kind, out.Amount = EventDisputeLost, d.Amount
	}
	return out, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, stripepay.ErrCardDeclined):
		return fmt.Errorf("%w: %v", ErrDeclined, err)
	case errors.Is(err, stripepay.ErrAuthorizationExpired):
		return fmt.Errorf("%w: %v", ErrAuthorizationExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
