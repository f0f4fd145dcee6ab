package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/rookie_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
)

type stubBookings struct {
	booking.Service
	err      error
	outcome  booking.Outcome
	reqInput booking.RequestInput
	calls    int
}

func (s *stubBookings) Request(_ context.Context, _ identity.Learner, in booking.RequestInput) (*schema.Booking, error) {
	s.calls++
	s.reqInput = in
	if s.err != nil {
		return nil, s.err
	}
	b := &schema.Booking{SlotID: in.SlotID, Status: schema.BookingAwaitingConfirmation}
	b.ID = uuid.New()
	return b, nil
}

func (s *stubBookings) Cancel(_ context.Context, _ identity.Actor, id uuid.UUID, reason string) (*schema.Booking, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b := &schema.Booking{Status: schema.BookingCancelled, CancelReason: reason}
	b.ID = id
	return b, nil
}

func (s *stubBookings) RespondToProposal(_ context.Context, _ identity.Learner, id uuid.UUID, _ bool) (*schema.Booking, error) {
	s.calls++
	b := &schema.Booking{Status: schema.BookingAwaitingConfirmation}
	b.ID = id
	return b, s.err
}

func (s *stubBookings) Accept(_ context.Context, _ identity.Expert, _ uuid.UUID) (*schema.Booking, error) {
	return nil, s.err
}

func (s *stubBookings) ReconcilePaymentEvent(_ context.Context, _ payment.Event) (booking.Outcome, error) {
	return s.outcome, s.err
}

type stubPayments struct {
	payment.Service
	ev  *payment.Event
	err error
}

func (s *stubPayments) ParseEvent(_ []byte, _ string) (*payment.Event, error) {
	return s.ev, s.err
}

type webhookCounter struct {
	kinds, outcomes []string
}

func (w *webhookCounter) RecordWebhook(_ context.Context, kind, outcome string) {
	w.kinds = append(w.kinds, kind)
	w.outcomes = append(w.outcomes, outcome)
}

func asLearner() identity.Actor {
	u := &schema.User{Role: schema.RoleLearner}
	u.ID = uuid.New()
	return identity.Learner{User: u}
}

func asExpert() identity.Actor {
	u := &schema.User{Role: schema.RoleExpert}
	u.ID = uuid.New()
	return identity.Expert{User: u, Profile: &schema.ExpertProfile{UserID: u.ID}}
}

// withActor stands in for AuthRequired.
func withActor(a identity.Actor) fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Locals(middleware.LocalActor, a)
		return c.Next()
	}
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Test request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestMapBookingError(t *testing.T) {
	bookingID := uuid.New()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"pending authorization", &booking.PendingError{BookingID: bookingID, Err: payment.ErrUpstream}, http.StatusBadGateway},
		{"declined", fmt.Errorf("authorize payment: %w", payment.ErrDeclined), http.StatusPaymentRequired},
		{"expired authorization", payment.ErrAuthorizationExpired, http.StatusConflict},
		{"stale", booking.ErrStaleState, http.StatusConflict},
		{"invalid state", booking.ErrInvalidState, http.StatusConflict},
		{"not found", booking.ErrBookingNotFound, http.StatusNotFound},
		{"forbidden", booking.ErrForbidden, http.StatusForbidden},
		{"past slot", booking.ErrSlotInPast, http.StatusBadRequest},
		{"upstream", fmt.Errorf("capture payment: %w", payment.ErrUpstream), http.StatusBadGateway},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c fiber.Ctx) error { return mapBookingError(c, tt.err) })

			status, body := do(t, app, fiber.MethodGet, "/", "")
			if status != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, status)
			}
			if _, hasError := body["error"]; !hasError {
				t.Errorf("Expected an error message, got %v", body)
			}
		})
	}

	t.Run("pending carries booking id", func(t *testing.T) {
		app := fiber.New()
		app.Get("/", func(c fiber.Ctx) error {
			return mapBookingError(c, &booking.PendingError{BookingID: bookingID, Err: payment.ErrUpstream})
		})
		_, body := do(t, app, fiber.MethodGet, "/", "")
		if body["booking_id"] != bookingID.String() {
			t.Errorf("Expected booking_id %s, got %v", bookingID, body["booking_id"])
		}
	})
}

func TestBookingCreate(t *testing.T) {
	slotID := uuid.New()

	tests := []struct {
		name  string
		actor identity.Actor
		body  string
		err   error
		want  int
	}{
		{"learner books", asLearner(), `{"slot_id":"` + slotID.String() + `","payment_method":"pm_card_visa"}`, nil, http.StatusCreated},
		{"expert cannot book", asExpert(), `{"slot_id":"` + slotID.String() + `"}`, nil, http.StatusForbidden},
		{"missing slot", asLearner(), `{"payment_method":"pm_card_visa"}`, nil, http.StatusBadRequest},
		{"malformed slot", asLearner(), `{"slot_id":"nope"}`, nil, http.StatusBadRequest},
		{"malformed body", asLearner(), `{`, nil, http.StatusBadRequest},
		{"slot taken", asLearner(), `{"slot_id":"` + slotID.String() + `"}`, booking.ErrStaleState, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBookings{err: tt.err}
			h := NewBookingHandler(svc, nil)
			app := fiber.New()
			app.Post("/bookings", withActor(tt.actor), h.Create)

			status, body := do(t, app, fiber.MethodPost, "/bookings", tt.body)
			if status != tt.want {
				t.Fatalf("Expected status %d, got %d (%v)", tt.want, status, body)
			}
			if tt.want == http.StatusCreated && svc.reqInput.SlotID != slotID {
				t.Errorf("Expected slot %s to reach the service, got %s", slotID, svc.reqInput.SlotID)
			}
			if (tt.want == http.StatusBadRequest || tt.want == http.StatusForbidden) && svc.calls != 0 {
				t.Errorf("Expected the service not to be called, got %d calls", svc.calls)
			}
		})
	}
}

func TestBookingCreate_ReturnsClientSecret(t *testing.T) {
	svc := &stubBookings{}
	h := NewBookingHandler(&secretBookings{stubBookings: svc}, nil)
	app := fiber.New()
	app.Post("/bookings", withActor(asLearner()), h.Create)

	status, body := do(t, app, fiber.MethodPost, "/bookings", `{"slot_id":"`+uuid.NewString()+`"}`)
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%v)", status, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["client_secret"] != "pi_1_secret_x" || data["status"] != string(schema.BookingPending) {
		t.Errorf("Expected pending booking with client secret, got %v", data)
	}
}

// secretBookings answers like an authorization that needs 3-D Secure.
type secretBookings struct {
	*stubBookings
}

func (s *secretBookings) Request(ctx context.Context, l identity.Learner, in booking.RequestInput) (*schema.Booking, error) {
	b, err := s.stubBookings.Request(ctx, l, in)
	if err != nil {
		return nil, err
	}
	ref := "pi_1"
	b.Status, b.PaymentRef, b.ClientSecret = schema.BookingPending, &ref, "pi_1_secret_x"
	return b, nil
}

func TestBookingBodies_RejectedBeforeService(t *testing.T) {
	id := uuid.NewString()
	long := strings.Repeat("x", 1001)

	tests := []struct {
		name      string
		path      string
		body      string
		want      int
		wantCalls int
	}{
		{"cancel malformed", "/bookings/" + id + "/cancel", `{`, http.StatusBadRequest, 0},
		{"cancel reason too long", "/bookings/" + id + "/cancel", `{"reason":"` + long + `"}`, http.StatusBadRequest, 0},
		{"cancel without body", "/bookings/" + id + "/cancel", ``, http.StatusOK, 1},
		{"cancel with reason", "/bookings/" + id + "/cancel", `{"reason":"ill"}`, http.StatusOK, 1},
		{"proposal without accept", "/bookings/" + id + "/proposal", `{}`, http.StatusBadRequest, 0},
		{"proposal malformed", "/bookings/" + id + "/proposal", `{"accept":`, http.StatusBadRequest, 0},
		{"proposal accepted", "/bookings/" + id + "/proposal", `{"accept":true}`, http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBookings{}
			h := NewBookingHandler(svc, nil)
			app := fiber.New()
			app.Post("/bookings/:id/cancel", withActor(asLearner()), h.Cancel)
			app.Post("/bookings/:id/proposal", withActor(asLearner()), h.RespondToProposal)

			status, body := do(t, app, fiber.MethodPost, tt.path, tt.body)
			if status != tt.want {
				t.Fatalf("Expected status %d, got %d (%v)", tt.want, status, body)
			}
			if svc.calls != tt.wantCalls {
				t.Errorf("Expected %d service calls, got %d", tt.wantCalls, svc.calls)
			}
		})
	}
}

func TestBookingAccept_LearnerForbidden(t *testing.T) {
	h := NewBookingHandler(&stubBookings{}, nil)
	app := fiber.New()
	app.Post("/bookings/:id/accept", withActor(asLearner()), h.Accept)

	status, _ := do(t, app, fiber.MethodPost, "/bookings/"+uuid.NewString()+"/accept", "")
	if status != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", status)
	}
}

func TestPaymentWebhook(t *testing.T) {
	ev := &payment.Event{ID: "evt_1", Kind: payment.EventPaymentSucceeded, ExternalRef: "pi_1"}

	tests := []struct {
		name        string
		parseErr    error
		reconcile   error
		outcome     booking.Outcome
		want        int
		wantOutcome string
	}{
		{"applied", nil, nil, booking.OutcomeApplied, http.StatusOK, "applied"},
		{"duplicate", nil, nil, booking.OutcomeDuplicate, http.StatusOK, "duplicate"},
		{"bad signature", payment.ErrInvalidSignature, nil, "", http.StatusBadRequest, "rejected"},
		{"reconcile failure", nil, errors.New("db down"), "", http.StatusInternalServerError, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &webhookCounter{}
			h := NewPaymentHandler(
				&stubPayments{ev: ev, err: tt.parseErr},
				&stubBookings{outcome: tt.outcome, err: tt.reconcile},
				counter,
			)
			app := fiber.New()
			app.Post("/webhooks/payments", h.Webhook)

			status, _ := do(t, app, fiber.MethodPost, "/webhooks/payments", `{"id":"evt_1"}`)
			if status != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, status)
			}
			if len(counter.outcomes) != 1 || counter.outcomes[0] != tt.wantOutcome {
				t.Errorf("Expected one %q metric, got %v", tt.wantOutcome, counter.outcomes)
			}
		})
	}
}

func TestClockMinutes(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:30", 570, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"9.30", 0, true},
		{"25:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := clockMinutes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
