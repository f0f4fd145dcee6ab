package handler

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/rookie_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	"github.com/Alijeyrad/rookie_backend/pkg/reqctx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func noContent(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func paymentRequired(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": msg})
}

func forbidden(c fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
}

func notFound(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func conflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}

func badGateway(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": msg})
}

// internalError logs err and answers with a generic message.
func internalError(c fiber.Ctx, err error) error {
	ctx := c.Context()
	slog.ErrorContext(ctx, "request failed",
		append(reqctx.LogAttrs(ctx), "method", c.Method(), "path", c.Path(), "error", err)...)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// bindJSON decodes and validates the request body into dst. An empty body
// leaves dst zeroed for validation. When it reports false the 400 has already
// been written and the handler must return err.
func bindJSON(c fiber.Ctx, dst any) (bool, error) {
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(dst); err != nil {
			return false, badRequest(c, "invalid request body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		return false, badRequest(c, validationMessage(err))
	}
	return true, nil
}

func validationMessage(err error) string {
	verrs, isValidation := err.(validator.ValidationErrors)
	if !isValidation || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func pageQuery(c fiber.Ctx) (page, perPage int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	perPage, _ = strconv.Atoi(c.Query("per_page", "20"))
	return page, perPage
}

func actorFromLocals(c fiber.Ctx) (identity.Actor, bool) {
	return middleware.ActorFromFiber(c)
}

func expertFromLocals(c fiber.Ctx) (identity.Expert, bool) {
	a, found := middleware.ActorFromFiber(c)
	if !found {
		return identity.Expert{}, false
	}
	e, isExpert := a.(identity.Expert)
	return e, isExpert
}

func learnerFromLocals(c fiber.Ctx) (identity.Learner, bool) {
	a, found := middleware.ActorFromFiber(c)
	if !found {
		return identity.Learner{}, false
	}
	l, isLearner := a.(identity.Learner)
	return l, isLearner
}
