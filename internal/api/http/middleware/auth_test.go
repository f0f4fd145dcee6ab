package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/internal/testdb"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
	"github.com/Alijeyrad/rookie_backend/pkg/reqctx"
)

func TestAuthRequired(t *testing.T) {
	v, err := idp.New(idp.Config{Secret: []byte("test-secret"), Issuer: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("New verifier failed: %v", err)
	}
	other, err := idp.New(idp.Config{Secret: []byte("another-secret"), Issuer: "https://auth.example.com"})
	if err != nil {
		t.Fatalf("New verifier failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Booking.DefaultCurrency = "dkk"
	ids := identity.New(testdb.New(t), cfg, nil)

	app := fiber.New()
	app.Use(RequestID())
	app.Get("/me", AuthRequired(v, ids), func(c fiber.Ctx) error {
		actor, found := ActorFromFiber(c)
		if !found {
			return c.SendStatus(fiber.StatusTeapot)
		}
		if _, isLearner := actor.(identity.Learner); !isLearner {
			return c.SendStatus(fiber.StatusTeapot)
		}
		if id, _ := reqctx.UserIDFromContext(c.Context()); id != actor.UserID() {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(actor.Account().Email)
	})

	good, err := v.Sign(idp.Identity{Subject: "sub-42", Email: "Learner@Example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	forged, err := other.Sign(idp.Identity{Subject: "sub-42", Email: "learner@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	expired, err := v.Sign(idp.Identity{Subject: "sub-42", Email: "learner@example.com"}, -time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + good, fiber.StatusOK},
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Token " + good, fiber.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, fiber.StatusUnauthorized},
		{"expired", "Bearer " + expired, fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Test request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.StatusCode)
			}
			if resp.Header.Get(HeaderRequestID) == "" {
				t.Errorf("Expected a request id header")
			}
		})
	}
}
