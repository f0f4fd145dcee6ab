package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/api/http/handler"
)

func (r *Router) registerBookingRoutes(api fiber.Router, bh *handler.BookingHandler, authRequired fiber.Handler) {
	bookings := api.Group("/bookings", authRequired)

	bookings.Post("/", bh.Create)
	bookings.Get("/", bh.List)
	bookings.Get("/:id", bh.Get)
	bookings.Get("/:id/session", bh.Session)

	// Learner
	bookings.Post("/:id/authorize", bh.Authorize)
	bookings.Post("/:id/proposal", bh.RespondToProposal)

	// Expert
	bookings.Post("/:id/accept", bh.Accept)
	bookings.Post("/:id/decline", bh.Decline)
	bookings.Post("/:id/propose", bh.Propose)
	bookings.Post("/:id/no-show", bh.NoShow)
	bookings.Post("/:id/refund", bh.Refund)

	// Either participant
	bookings.Post("/:id/cancel", bh.Cancel)
	bookings.Post("/:id/reviews", bh.Review)
}
