package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/api/http/handler"
)

func (r *Router) registerExpertRoutes(
	api fiber.Router,
	eh *handler.ExpertHandler,
	sh *handler.SlotHandler,
	authRequired fiber.Handler,
) {
	experts := api.Group("/experts")

	// Own profile
	experts.Put("/me", authRequired, eh.UpsertMe)
	experts.Post("/me/publish", authRequired, eh.PublishMe)
	experts.Post("/me/unpublish", authRequired, eh.UnpublishMe)

	// Public directory
	experts.Get("/", eh.List)
	experts.Get("/:id", eh.Get)
	experts.Get("/:id/slots", eh.ListSlots)
	experts.Get("/:id/reviews", eh.ListReviews)

	slots := api.Group("/slots", authRequired)
	slots.Get("/", sh.ListMine)
	slots.Post("/", sh.Publish)
	slots.Post("/:id/block", sh.Block)
	slots.Post("/:id/unblock", sh.Unblock)
}
