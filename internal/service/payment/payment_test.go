package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/pkg/stripepay"
)

type fakeGateway struct {
	intent  *stripepay.Intent
	err     error
	lastKey string
	calls   []string
}

func (f *fakeGateway) CreateAuthorization(_ context.Context, p stripepay.AuthorizeParams) (*stripepay.Intent, error) {
	f.lastKey = p.IdempotencyKey
	f.calls = append(f.calls, "create")
	return f.intent, f.err
}

func (f *fakeGateway) ConfirmIntent(_ context.Context, id, _, key string) (*stripepay.Intent, error) {
	f.lastKey = key
	f.calls = append(f.calls, "confirm:"+id)
	return f.intent, f.err
}

func (f *fakeGateway) GetIntent(_ context.Context, id string) (*stripepay.Intent, error) {
	f.lastKey = ""
	f.calls = append(f.calls, "get:"+id)
	return f.intent, f.err
}

func (f *fakeGateway) Capture(_ context.Context, _, key string) (*stripepay.Intent, error) {
	f.lastKey = key
	return f.intent, f.err
}

func (f *fakeGateway) Cancel(_ context.Context, _, key string) (*stripepay.Intent, error) {
	f.lastKey = key
	return f.intent, f.err
}

func (f *fakeGateway) Refund(_ context.Context, _ string, amount int64, key string) (*stripepay.Refund, error) {
	f.lastKey = key
	if f.err != nil {
		return nil, f.err
	}
	return &stripepay.Refund{ID: "re_1", Amount: amount, Status: "succeeded"}, nil
}

func (f *fakeGateway) ConstructEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Stripe.Currency = "dkk"
	cfg.Booking.AuthorizationTTLHours = 168
	return cfg
}

func TestAuthorize_Statuses(t *testing.T) {
	bookingID := uuid.New()

	tests := []struct {
		name       string
		intent     *stripepay.Intent
		err        error
		wantStatus AuthorizationStatus
		wantErr    error
	}{
		{"requires capture", &stripepay.Intent{ID: "pi_1", Status: "requires_capture", Amount: 500}, nil, StatusRequiresCapture, nil},
		{"requires action", &stripepay.Intent{ID: "pi_1", Status: "requires_action", Amount: 500}, nil, StatusRequiresAction, nil},
		{"card declined", nil, fmt.Errorf("x: %w", stripepay.ErrCardDeclined), "", ErrDeclined},
		{"network failure", nil, stripepay.ErrAPI{Op: "create", Err: errors.New("timeout")}, "", ErrUpstream},
		{"cancelled intent", &stripepay.Intent{ID: "pi_1", Status: "canceled"}, nil, "", ErrDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{intent: tt.intent, err: tt.err}
			s := New(gw, testConfig())

			auth, err := s.Authorize(context.Background(), AuthorizeRequest{BookingID: bookingID, Amount: 500})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize failed: %v", err)
			}
			if auth.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, auth.Status)
			}
			if auth.Currency != "dkk" {
				t.Errorf("Expected default currency dkk, got %s", auth.Currency)
			}
			if got := auth.ExpiresAt.Sub(auth.AuthorizedAt); got != 168*time.Hour {
				t.Errorf("Expected 168h authorization window, got %s", got)
			}
			if gw.lastKey != "booking:"+bookingID.String()+":authorize" {
				t.Errorf("Unexpected idempotency key %q", gw.lastKey)
			}
		})
	}
}

func TestAuthorize_Retries(t *testing.T) {
	bookingID := uuid.New()
	prefix := "booking:" + bookingID.String() + ":"
	intent := &stripepay.Intent{ID: "pi_1", Status: "requires_action", Amount: 500, ClientSecret: "pi_1_secret_x"}

	tests := []struct {
		name     string
		req      AuthorizeRequest
		wantCall string
		wantKey  string
	}{
		{"new intent without method", AuthorizeRequest{}, "create", prefix + "authorize"},
		{"new intent with method", AuthorizeRequest{PaymentMethod: "pm_b"}, "create", prefix + "authorize:pm_b"},
		{"existing intent with new method", AuthorizeRequest{ExistingRef: "pi_1", PaymentMethod: "pm_b"}, "confirm:pi_1", prefix + "confirm:pm_b"},
		{"existing intent without method", AuthorizeRequest{ExistingRef: "pi_1"}, "get:pi_1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{intent: intent}
			s := New(gw, testConfig())

			req := tt.req
			req.BookingID, req.Amount = bookingID, 500
			auth, err := s.Authorize(context.Background(), req)
			if err != nil {
				t.Fatalf("Authorize failed: %v", err)
			}
			if len(gw.calls) != 1 || gw.calls[0] != tt.wantCall {
				t.Errorf("Expected call %s, got %v", tt.wantCall, gw.calls)
			}
			if gw.lastKey != tt.wantKey {
				t.Errorf("Expected idempotency key %q, got %q", tt.wantKey, gw.lastKey)
			}
			if auth.Status != StatusRequiresAction || auth.ClientSecret != "pi_1_secret_x" {
				t.Errorf("Expected requires_action with client secret, got %+v", auth)
			}
		})
	}
}

func TestAuthorize_RejectsNonPositiveAmount(t *testing.T) {
	s := New(&fakeGateway{}, testConfig())
	if _, err := s.Authorize(context.Background(), AuthorizeRequest{BookingID: uuid.New()}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestCaptureCancelRefund(t *testing.T) {
	bookingID := uuid.New()
	ctx := context.Background()

	gw := &fakeGateway{intent: &stripepay.Intent{ID: "pi_1", Status: "succeeded"}}
	s := New(gw, testConfig())
	if err := s.Capture(ctx, "pi_1", bookingID); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if gw.lastKey != IdempotencyKey(bookingID, "capture") {
		t.Errorf("Unexpected capture key %q", gw.lastKey)
	}

	gw.err = fmt.Errorf("x: %w", stripepay.ErrAuthorizationExpired)
	if err := s.Capture(ctx, "pi_1", bookingID); !errors.Is(err, ErrAuthorizationExpired) {
		t.Errorf("Expected ErrAuthorizationExpired, got %v", err)
	}
	if err := s.Cancel(ctx, "pi_1", bookingID); err != nil {
		t.Errorf("Expected cancel of a voided authorization to succeed, got %v", err)
	}

	gw.err = nil
	got, err := s.Refund(ctx, "pi_1", bookingID, 300)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if got != 300 {
		t.Errorf("Expected 300 refunded, got %d", got)
	}
}

func signed(t *testing.T, payload string) (*paymentService, []byte, string) {
	t.Helper()
	client, err := stripepay.New(stripepay.Config{SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	if err != nil {
		t.Fatalf("stripepay.New failed: %v", err)
	}
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	return New(client, testConfig()).(*paymentService), []byte(payload), header
}

func TestParseEvent_Kinds(t *testing.T) {
	event := func(typ, object string) string {
		return fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":%s}}`, typ, object)
	}

	tests := []struct {
		name     string
		payload  string
		wantKind EventKind
		wantRef  string
		wantAmt  int64
	}{
		{"capturable", event("payment_intent.amount_capturable_updated", `{"id":"pi_1","object":"payment_intent","amount":500,"amount_capturable":500}`), EventAuthorizationSucceeded, "pi_1", 500},
		{"succeeded", event("payment_intent.succeeded", `{"id":"pi_2","object":"payment_intent","amount_received":700}`), EventPaymentSucceeded, "pi_2", 700},
		{"failed", event("payment_intent.payment_failed", `{"id":"pi_3","object":"payment_intent","amount":100}`), EventPaymentFailed, "pi_3", 100},
		{"canceled", event("payment_intent.canceled", `{"id":"pi_4","object":"payment_intent","amount":100}`), EventAuthorizationCancelled, "pi_4", 100},
		{"refunded", event("charge.refunded", `{"id":"ch_1","object":"charge","payment_intent":"pi_5","amount_refunded":250}`), EventRefunded, "pi_5", 250},
		{"dispute lost", event("charge.dispute.closed", `{"id":"dp_1","object":"dispute","status":"lost","payment_intent":"pi_6","amount":900}`), EventDisputeLost, "pi_6", 900},
		{"dispute won", event("charge.dispute.closed", `{"id":"dp_2","object":"dispute","status":"won","payment_intent":"pi_7","amount":900}`), EventIgnored, "", 0},
		{"unrelated", event("customer.created", `{"id":"cus_1","object":"customer"}`), EventIgnored, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, payload, header := signed(t, tt.payload)
			ev, err := s.ParseEvent(payload, header)
			if err != nil {
				t.Fatalf("ParseEvent failed: %v", err)
			}
			if ev.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, ev.Kind)
			}
			if ev.ExternalRef != tt.wantRef {
				t.Errorf("Expected ref %q, got %q", tt.wantRef, ev.ExternalRef)
			}
			if ev.Amount != tt.wantAmt {
				t.Errorf("Expected amount %d, got %d", tt.wantAmt, ev.Amount)
			}
			if ev.ID != "evt_1" {
				t.Errorf("Expected event id evt_1, got %s", ev.ID)
			}
		})
	}
}

func TestParseEvent_BadSignature(t *testing.T) {
	s, payload, _ := signed(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{}}}`)
	if _, err := s.ParseEvent(payload, "t=1,v1=deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}
