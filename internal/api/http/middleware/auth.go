package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
	"github.com/Alijeyrad/rookie_backend/pkg/reqctx"
)

const LocalActor = "actor"

// TokenVerifier checks a raw bearer token. *idp.Verifier satisfies it.
type TokenVerifier interface {
	Verify(raw string) (idp.Identity, error)
}

// AuthRequired verifies the provider's bearer token, resolves the user behind
// it and stores the identity.Actor in c.Locals(LocalActor).
func AuthRequired(v TokenVerifier, ids identity.Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		raw, found := idp.BearerToken(c)
		if !found {
			return unauthenticated(c)
		}

		claims, err := v.Verify(raw)
		if err != nil {
			return unauthenticated(c)
		}

		ctx := c.Context()
		u, err := ids.Resolve(ctx, claims)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrEmailRequired) {
				return unauthenticated(c)
			}
			slog.ErrorContext(ctx, "resolve user failed", append(reqctx.LogAttrs(ctx), "error", err)...)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}

		actor, err := ids.ActorFor(ctx, u)
		if err != nil {
			if errors.Is(err, identity.ErrUnknownRole) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
			}
			slog.ErrorContext(ctx, "build actor failed", append(reqctx.LogAttrs(ctx), "error", err)...)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}

		c.Locals(LocalActor, actor)
		c.SetContext(reqctx.WithUserID(ctx, u.ID))
		return c.Next()
	}
}

// ActorFromFiber returns the actor stored by AuthRequired.
func ActorFromFiber(c fiber.Ctx) (identity.Actor, bool) {
	a, ok := c.Locals(LocalActor).(identity.Actor)
	return a, ok && a != nil
}

func unauthenticated(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}
