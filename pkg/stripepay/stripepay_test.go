package stripepay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		APIBaseURL:    srv.URL,
		MaxRetries:    0,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}

func TestCreateAuthorization(t *testing.T) {
	var gotKey string
	var gotForm url.Values

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","status":"requires_capture","amount":60000,"amount_capturable":60000,"currency":"dkk"}`)
	})

	pi, err := c.CreateAuthorization(context.Background(), AuthorizeParams{
		Amount:         60000,
		Currency:       "dkk",
		PaymentMethod:  "pm_card_visa",
		IdempotencyKey: "booking:abc:authorize",
		Metadata:       map[string]string{"booking_id": "abc"},
	})
	if err != nil {
		t.Fatalf("CreateAuthorization failed: %v", err)
	}
	if pi.ID != "pi_123" || pi.Status != "requires_capture" || pi.AmountCapturable != 60000 {
		t.Errorf("Unexpected intent %+v", pi)
	}
	if gotKey != "booking:abc:authorize" {
		t.Errorf("Expected idempotency key to be sent, got %q", gotKey)
	}
	if gotForm.Get("capture_method") != "manual" {
		t.Errorf("Expected manual capture, got %q", gotForm.Get("capture_method"))
	}
	if gotForm.Get("confirm") != "true" {
		t.Errorf("Expected confirm=true with a payment method, got %q", gotForm.Get("confirm"))
	}
	if gotForm.Get("metadata[booking_id]") != "abc" {
		t.Errorf("Expected booking metadata, got %q", gotForm.Get("metadata[booking_id]"))
	}
}

func TestConfirmIntent_ReturnsClientSecret(t *testing.T) {
	var gotKey string
	var gotForm url.Values

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents/pi_123/confirm" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","status":"requires_action","amount":60000,"currency":"dkk","client_secret":"pi_123_secret_abc"}`)
	})

	pi, err := c.ConfirmIntent(context.Background(), "pi_123", "pm_card_threeDSecure2Required", "booking:abc:confirm:pm_card_threeDSecure2Required")
	if err != nil {
		t.Fatalf("ConfirmIntent failed: %v", err)
	}
	if pi.Status != "requires_action" || pi.ClientSecret != "pi_123_secret_abc" {
		t.Errorf("Unexpected intent %+v", pi)
	}
	if gotForm.Get("payment_method") != "pm_card_threeDSecure2Required" {
		t.Errorf("Expected payment method to be sent, got %q", gotForm.Get("payment_method"))
	}
	if gotKey != "booking:abc:confirm:pm_card_threeDSecure2Required" {
		t.Errorf("Expected idempotency key to be sent, got %q", gotKey)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "card declined",
			status:  http.StatusPaymentRequired,
			body:    `{"error":{"type":"card_error","code":"card_declined","decline_code":"generic_decline","message":"Your card was declined."}}`,
			wantErr: ErrCardDeclined,
		},
		{
			name:    "expired for capture",
			status:  http.StatusBadRequest,
			body:    `{"error":{"type":"invalid_request_error","code":"charge_expired_for_capture","message":"expired"}}`,
			wantErr: ErrAuthorizationExpired,
		},
		{
			name:    "canceled intent",
			status:  http.StatusBadRequest,
			body:    `{"error":{"type":"invalid_request_error","code":"payment_intent_unexpected_state","message":"canceled","payment_intent":{"id":"pi_1","object":"payment_intent","status":"canceled"}}}`,
			wantErr: ErrAuthorizationExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := c.Capture(context.Background(), "pi_1", "booking:x:capture")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("server error is an API error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
		})
		_, err := c.Cancel(context.Background(), "pi_1", "booking:x:cancel")
		var apiErr ErrAPI
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected ErrAPI, got %T %v", err, err)
		}
		if apiErr.Status != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", apiErr.Status)
		}
	})
}

func TestRefund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/refunds" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("payment_intent") != "pi_9" {
			t.Errorf("Expected payment_intent pi_9, got %q", form.Get("payment_intent"))
		}
		if form.Has("amount") {
			t.Error("Expected a full refund to omit amount")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"re_1","object":"refund","amount":60000,"status":"succeeded"}`)
	})

	r, err := c.Refund(context.Background(), "pi_9", 0, "booking:x:refund")
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if r.Amount != 60000 || r.Status != "succeeded" {
		t.Errorf("Unexpected refund %+v", r)
	}
}

// sign builds a Stripe-Signature header the way Stripe does.
func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestConstructEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":"2020-08-27","data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded"}}}`)

	ev, err := c.ConstructEvent(payload, sign(payload, "whsec_test", time.Now()))
	if err != nil {
		t.Fatalf("ConstructEvent failed: %v", err)
	}
	if ev.ID != "evt_1" || string(ev.Type) != "payment_intent.succeeded" {
		t.Errorf("Unexpected event %s %s", ev.ID, ev.Type)
	}

	tests := []struct {
		name string
		sig  string
	}{
		{"wrong secret", sign(payload, "whsec_other", time.Now())},
		{"stale timestamp", sign(payload, "whsec_test", time.Now().Add(-time.Hour))},
		{"garbage", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.ConstructEvent(payload, tt.sig); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("Expected ErrInvalidSignature, got %v", err)
			}
		})
	}

	tampered := []byte(strings.Replace(string(payload), "succeeded", "canceled", 1))
	if _, err := c.ConstructEvent(tampered, sign(payload, "whsec_test", time.Now())); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected tampered payload to be rejected, got %v", err)
	}
}
