package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/service/notification"
)

type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func mapNotificationError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, notification.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, notification.ErrInvalidPaging):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /notifications
func (h *NotificationHandler) List(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}

	var q struct {
		UnreadOnly bool `query:"unread_only"`
	}
	_ = c.Bind().Query(&q)
	page, perPage := pageQuery(c)

	notifs, err := h.svc.List(c.Context(), actor.UserID(), q.UnreadOnly, page, perPage)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return ok(c, notifs)
}

// PATCH /notifications/:id/read
func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}

	notifID, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid notification id")
	}

	if err := h.svc.MarkRead(c.Context(), notifID, actor.UserID()); err != nil {
		return mapNotificationError(c, err)
	}

	return noContent(c)
}

// PATCH /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}

	if err := h.svc.MarkAllRead(c.Context(), actor.UserID()); err != nil {
		return mapNotificationError(c, err)
	}

	return noContent(c)
}
