package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/availability"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/internal/service/payment"
	"github.com/Alijeyrad/rookie_backend/internal/service/review"
)

type BookingHandler struct {
	svc     booking.Service
	reviews review.Service
}

func NewBookingHandler(svc booking.Service, reviews review.Service) *BookingHandler {
	return &BookingHandler{svc: svc, reviews: reviews}
}

func mapBookingError(c fiber.Ctx, err error) error {
	var pending *booking.PendingError
	if errors.As(err, &pending) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":      "payment authorization could not be completed, retry later",
			"booking_id": pending.BookingID,
		})
	}

	switch {
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrSessionNotFound),
		errors.Is(err, availability.ErrSlotNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, booking.ErrForbidden),
		errors.Is(err, availability.ErrNotOwner):
		return forbidden(c)
	case errors.Is(err, booking.ErrSlotInPast),
		errors.Is(err, booking.ErrSlotMismatch),
		errors.Is(err, booking.ErrInvalidFilter):
		return badRequest(c, err.Error())
	case errors.Is(err, payment.ErrDeclined):
		return paymentRequired(c, err.Error())
	case errors.Is(err, payment.ErrAuthorizationExpired),
		errors.Is(err, booking.ErrStaleState),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrInvariantViolation),
		errors.Is(err, booking.ErrExpertUnavailable),
		errors.Is(err, booking.ErrNoProposal),
		errors.Is(err, booking.ErrSessionStarted),
		errors.Is(err, booking.ErrSessionNotStarted),
		errors.Is(err, booking.ErrSessionNotEnded),
		errors.Is(err, booking.ErrNoPayment),
		errors.Is(err, availability.ErrSlotUnavailable),
		errors.Is(err, availability.ErrSlotInUse):
		return conflict(c, err.Error())
	case errors.Is(err, payment.ErrUpstream):
		return badGateway(c, "payment provider unavailable")
	default:
		return internalError(c, err)
	}
}

func mapReviewError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, review.ErrBookingNotFound),
		errors.Is(err, review.ErrSessionNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, review.ErrNotParticipant):
		return forbidden(c)
	case errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, review.ErrCommentTooLong):
		return badRequest(c, err.Error())
	case errors.Is(err, review.ErrNotCompleted),
		errors.Is(err, review.ErrAlreadyReviewed):
		return conflict(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// ---------------------------------------------------------------------------
// Learner operations
// ---------------------------------------------------------------------------

// POST /bookings
func (h *BookingHandler) Create(c fiber.Ctx) error {
	l, isLearner := learnerFromLocals(c)
	if !isLearner {
		return forbidden(c)
	}

	var body struct {
		SlotID        string `json:"slot_id" validate:"required,uuid"`
		PaymentMethod string `json:"payment_method"`
		Note          string `json:"note" validate:"max=2000"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	slotID, err := uuid.Parse(body.SlotID)
	if err != nil {
		return badRequest(c, "invalid slot_id")
	}

	b, err := h.svc.Request(c.Context(), l, booking.RequestInput{
		SlotID:        slotID,
		PaymentMethod: body.PaymentMethod,
		Note:          body.Note,
	})
	if err != nil {
		return mapBookingError(c, err)
	}
	return created(c, b)
}

// POST /bookings/:id/authorize
func (h *BookingHandler) Authorize(c fiber.Ctx) error {
	l, isLearner := learnerFromLocals(c)
	if !isLearner {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		PaymentMethod string `json:"payment_method"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	b, err := h.svc.Authorize(c.Context(), l, id, body.PaymentMethod)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// POST /bookings/:id/proposal
func (h *BookingHandler) RespondToProposal(c fiber.Ctx) error {
	l, isLearner := learnerFromLocals(c)
	if !isLearner {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		Accept *bool `json:"accept" validate:"required"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	b, err := h.svc.RespondToProposal(c.Context(), l, id, *body.Accept)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// ---------------------------------------------------------------------------
// Expert operations
// ---------------------------------------------------------------------------

// POST /bookings/:id/accept
func (h *BookingHandler) Accept(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	b, err := h.svc.Accept(c.Context(), e, id)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// POST /bookings/:id/decline
func (h *BookingHandler) Decline(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		Reason string `json:"reason" validate:"max=1000"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	b, err := h.svc.Decline(c.Context(), e, id, body.Reason)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// POST /bookings/:id/propose
func (h *BookingHandler) Propose(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		SlotID string `json:"slot_id" validate:"required,uuid"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	slotID, err := uuid.Parse(body.SlotID)
	if err != nil {
		return badRequest(c, "invalid slot_id")
	}

	b, err := h.svc.ProposeTime(c.Context(), e, id, slotID)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// POST /bookings/:id/no-show
func (h *BookingHandler) NoShow(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	b, err := h.svc.MarkNoShow(c.Context(), e, id)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// POST /bookings/:id/refund
func (h *BookingHandler) Refund(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		Reason string `json:"reason" validate:"max=1000"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	b, err := h.svc.Refund(c.Context(), e, id, body.Reason)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// ---------------------------------------------------------------------------
// Either participant
// ---------------------------------------------------------------------------

// POST /bookings/:id/cancel
func (h *BookingHandler) Cancel(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		Reason string `json:"reason" validate:"max=1000"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	b, err := h.svc.Cancel(c.Context(), actor, id, body.Reason)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// GET /bookings
func (h *BookingHandler) List(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}

	var q struct {
		Status string `query:"status"`
		From   string `query:"from"`
		To     string `query:"to"`
	}
	_ = c.Bind().Query(&q)

	f := booking.ListFilter{}
	f.Page, f.PerPage = pageQuery(c)
	if q.Status != "" {
		for _, s := range strings.Split(q.Status, ",") {
			f.Statuses = append(f.Statuses, schema.BookingStatus(strings.TrimSpace(s)))
		}
	}
	if q.From != "" {
		t, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			return badRequest(c, "from must be an RFC 3339 timestamp")
		}
		f.From = t
	}
	if q.To != "" {
		t, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			return badRequest(c, "to must be an RFC 3339 timestamp")
		}
		f.To = t
	}

	bookings, err := h.svc.List(c.Context(), actor, f)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, bookings)
}

// GET /bookings/:id
func (h *BookingHandler) Get(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	b, err := h.svc.Get(c.Context(), actor, id)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, b)
}

// GET /bookings/:id/session
func (h *BookingHandler) Session(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	v, err := h.svc.GetSession(c.Context(), actor, id)
	if err != nil {
		return mapBookingError(c, err)
	}
	return ok(c, v)
}

// POST /bookings/:id/reviews
func (h *BookingHandler) Review(c fiber.Ctx) error {
	actor, found := actorFromLocals(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid booking id")
	}

	var body struct {
		Rating  int    `json:"rating" validate:"required,min=1,max=5"`
		Comment string `json:"comment"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	r, err := h.reviews.Create(c.Context(), actor, id, body.Rating, body.Comment)
	if err != nil {
		return mapReviewError(c, err)
	}
	return created(c, r)
}
