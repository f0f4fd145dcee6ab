// Package stripepay is a thin client over stripe-go for manual-capture
// PaymentIntents, refunds and signed webhooks.
package stripepay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Alijeyrad/rookie_backend/config"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIBaseURL overrides https://api.stripe.com, e.g. for stripe-mock.
	APIBaseURL string
	MaxRetries int64
	Timeout    time.Duration
}

// Intent is the subset of a PaymentIntent the application reads.
type Intent struct {
	ID               string
	Status           string
	Amount           int64
	AmountCapturable int64
	AmountReceived   int64
	Currency         string
	// ClientSecret lets the payer finish the intent with Stripe.js. Never
	// store it.
	ClientSecret string
}

type Refund struct {
	ID     string
	Amount int64
	Status string
}

type AuthorizeParams struct {
	Amount         int64
	Currency       string
	PaymentMethod  string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type Client struct {
	api           *client.API
	webhookSecret string
}

func NewFromCentral(cfg config.StripeConfig) (*Client, error) {
	return New(Config{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		APIBaseURL:    cfg.APIBaseURL,
		MaxRetries:    cfg.MaxRetries,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

func New(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: secret key is required", ErrConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     slogLogger{},
	}
	if cfg.APIBaseURL != "" {
		bc.URL = stripe.String(cfg.APIBaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, bc)

	return &Client{
		api: client.New(cfg.SecretKey, &stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateAuthorization creates a manual-capture PaymentIntent. When a payment
// method is given the intent is confirmed immediately.
func (c *Client) CreateAuthorization(ctx context.Context, p AuthorizeParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.Amount),
		Currency:           stripe.String(p.Currency),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethod)
		params.Confirm = stripe.Bool(true)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}
	return toIntent(pi), nil
}

// ConfirmIntent confirms an existing intent with a new payment method.
func (c *Client) ConfirmIntent(ctx context.Context, intentID, paymentMethod, idempotencyKey string) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{PaymentMethod: stripe.String(paymentMethod)}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := c.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, classify("confirm payment intent", err)
	}
	return toIntent(pi), nil
}

func (c *Client) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, classify("get payment intent", err)
	}
	return toIntent(pi), nil
}

func (c *Client) Capture(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := c.api.PaymentIntents.Capture(intentID, params)
	if err != nil {
		return nil, classify("capture payment intent", err)
	}
	return toIntent(pi), nil
}

func (c *Client) Cancel(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := c.api.PaymentIntents.Cancel(intentID, params)
	if err != nil {
		return nil, classify("cancel payment intent", err)
	}
	return toIntent(pi), nil
}

// Refund refunds amount of a captured intent; zero refunds the remainder.
func (c *Client) Refund(ctx context.Context, intentID string, amount int64, idempotencyKey string) (*Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := c.api.Refunds.New(params)
	if err != nil {
		return nil, classify("create refund", err)
	}
	return &Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)}, nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("%w: webhook secret is not configured", ErrConfig)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ev, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:               pi.ID,
		Status:           string(pi.Status),
		Amount:           pi.Amount,
		AmountCapturable: pi.AmountCapturable,
		AmountReceived:   pi.AmountReceived,
		Currency:         string(pi.Currency),
		ClientSecret:     pi.ClientSecret,
	}
}

func classify(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return ErrAPI{Op: op, Err: err}
	}

	switch {
	case se.Type == stripe.ErrorTypeCard:
		return fmt.Errorf("%w: %s", ErrCardDeclined, se.Msg)
	case se.Code == stripe.ErrorCodeChargeExpiredForCapture:
		return fmt.Errorf("%w: %s", ErrAuthorizationExpired, se.Msg)
	case se.Code == stripe.ErrorCodePaymentIntentUnexpectedState &&
		se.PaymentIntent != nil && se.PaymentIntent.Status == stripe.PaymentIntentStatusCanceled:
		return fmt.Errorf("%w: %s", ErrAuthorizationExpired, se.Msg)
	}
	return ErrAPI{Op: op, Status: se.HTTPStatusCode, Code: string(se.Code), Err: se}
}

// slogLogger routes stripe-go's internal logging into slog.
type slogLogger struct{}

func (slogLogger) Debugf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}
func (slogLogger) Infof(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}
func (slogLogger) Warnf(format string, v ...interface{}) {
	slog.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}
func (slogLogger) Errorf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
