package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/api/http/handler"
)

func (r *Router) registerPaymentRoutes(api fiber.Router, ph *handler.PaymentHandler) {
	// Public: processor webhook, authenticated by its signature
	api.Post("/webhooks/payments", ph.Webhook)
}
