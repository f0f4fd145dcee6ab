package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/identity"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
)

// HeaderWebhookSecret carries the shared secret of identity provider hooks.
const HeaderWebhookSecret = "X-Webhook-Secret"

type AuthHandler struct {
	svc identity.Service
}

func NewAuthHandler(svc identity.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func mapIdentityError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidSecret):
		return unauthorized(c)
	case errors.Is(err, identity.ErrUserNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, identity.ErrEmailRequired),
		errors.Is(err, identity.ErrExternalIDRequired),
		errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, identity.ErrSignUpRejected):
		return badRequest(c, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, identity.ErrPasswordAuthDisabled):
		return notFound(c, err.Error())
	case errors.Is(err, identity.ErrProviderUnavailable):
		return badGateway(c, "identity provider unavailable")
	case errors.Is(err, identity.ErrUnknownRole):
		return forbidden(c)
	default:
		return internalError(c, err)
	}
}

type meResponse struct {
	User    *schema.User          `json:"user"`
	Profile *schema.ExpertProfile `json:"expert_profile,omitempty"`
}

// GET /auth/me
func (h *AuthHandler) Me(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}

	resp := meResponse{User: actor.Account()}
	if e, isExpert := actor.(identity.Expert); isExpert {
		resp.Profile = e.Profile
	}
	return ok(c, resp)
}

// POST /auth/users
func (h *AuthHandler) CreateUser(c fiber.Ctx) error {
	var body struct {
		ExternalAuthID string `json:"external_auth_id" validate:"required"`
		Email          string `json:"email" validate:"required,email"`
		Name           string `json:"name" validate:"max=200"`
		Role           string `json:"role" validate:"required,oneof=learner expert"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	u, isNew, err := h.svc.CreateUser(c.Context(), identity.CreateUserRequest{
		ExternalAuthID: body.ExternalAuthID,
		Email:          body.Email,
		Name:           body.Name,
		Role:           schema.Role(body.Role),
	})
	if err != nil {
		return mapIdentityError(c, err)
	}

	if isNew {
		return created(c, u)
	}
	return ok(c, u)
}

// POST /auth/sign-up
func (h *AuthHandler) SignUp(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=72"`
		Name     string `json:"name" validate:"required,min=2,max=200"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	u, err := h.svc.SignUp(c.Context(), identity.SignUpRequest{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		return mapIdentityError(c, err)
	}
	return created(c, u)
}

type signInResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *schema.User `json:"user"`
}

// POST /auth/sign-in
func (h *AuthHandler) SignIn(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	res, err := h.svc.SignIn(c.Context(), body.Email, body.Password)
	if err != nil {
		return mapIdentityError(c, err)
	}
	return ok(c, signInResponse{
		AccessToken:  res.Session.AccessToken,
		RefreshToken: res.Session.RefreshToken,
		TokenType:    res.Session.TokenType,
		ExpiresIn:    res.Session.ExpiresIn,
		User:         res.User,
	})
}

// POST /auth/sign-out
func (h *AuthHandler) SignOut(c fiber.Ctx) error {
	token, found := idp.BearerToken(c)
	if !found {
		return unauthorized(c)
	}
	if err := h.svc.SignOut(c.Context(), token); err != nil {
		return mapIdentityError(c, err)
	}
	return noContent(c)
}

// POST /auth/webhook
func (h *AuthHandler) Webhook(c fiber.Ctx) error {
	var ev identity.ProviderEvent
	if err := c.Bind().JSON(&ev); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := h.svc.HandleProviderEvent(c.Context(), c.Get(HeaderWebhookSecret), ev); err != nil {
		return mapIdentityError(c, err)
	}
	return noContent(c)
}
