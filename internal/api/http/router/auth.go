package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/api/http/handler"
)

func (r *Router) registerAuthRoutes(api fiber.Router, h *handler.AuthHandler, authRequired fiber.Handler) {
	group := api.Group("/auth")
	group.Get("/me", authRequired, h.Me)
	group.Post("/users", h.CreateUser)
	// Password flows proxied to the identity provider
	group.Post("/sign-up", h.SignUp)
	group.Post("/sign-in", h.SignIn)
	group.Post("/sign-out", authRequired, h.SignOut)
	// Identity provider hook, authenticated by shared secret
	group.Post("/webhook", h.Webhook)
}
