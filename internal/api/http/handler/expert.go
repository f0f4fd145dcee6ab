package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/availability"
	"github.com/Alijeyrad/rookie_backend/internal/service/expert"
	"github.com/Alijeyrad/rookie_backend/internal/service/review"
)

type ExpertHandler struct {
	experts expert.Service
	slots   availability.Service
	reviews review.Service
}

func NewExpertHandler(experts expert.Service, slots availability.Service, reviews review.Service) *ExpertHandler {
	return &ExpertHandler{experts: experts, slots: slots, reviews: reviews}
}

func mapExpertError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, expert.ErrProfileNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, expert.ErrRateRequired),
		errors.Is(err, expert.ErrInvalidRate),
		errors.Is(err, expert.ErrInvalidCurrency),
		errors.Is(err, expert.ErrTooManyTags):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// ---------------------------------------------------------------------------
// Directory
// ---------------------------------------------------------------------------

// GET /experts
func (h *ExpertHandler) List(c fiber.Ctx) error {
	page, perPage := pageQuery(c)
	profiles, err := h.experts.ListPublished(c.Context(), expert.ListFilter{
		Tag:     strings.TrimSpace(c.Query("tag")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return mapExpertError(c, err)
	}
	return ok(c, profiles)
}

// GET /experts/:id
func (h *ExpertHandler) Get(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid expert id")
	}

	p, err := h.experts.Get(c.Context(), id)
	if err != nil {
		return mapExpertError(c, err)
	}
	if !p.IsPublished {
		return notFound(c, expert.ErrProfileNotFound.Error())
	}
	return ok(c, p)
}

// GET /experts/:id/slots
func (h *ExpertHandler) ListSlots(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid expert id")
	}

	from, to, err := timeWindow(c, 30*24*time.Hour)
	if err != nil {
		return badRequest(c, err.Error())
	}

	slots, err := h.slots.ListSlots(c.Context(), id, availability.ListFilter{
		From:   from,
		To:     to,
		States: []schema.SlotState{schema.SlotOpen},
	})
	if err != nil {
		return mapSlotError(c, err)
	}
	return ok(c, slots)
}

// GET /experts/:id/reviews
func (h *ExpertHandler) ListReviews(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid expert id")
	}

	page, perPage := pageQuery(c)
	reviews, err := h.reviews.ListForUser(c.Context(), id, page, perPage)
	if err != nil {
		return mapReviewError(c, err)
	}
	return ok(c, reviews)
}

// ---------------------------------------------------------------------------
// Own profile
// ---------------------------------------------------------------------------

// PUT /experts/me
func (h *ExpertHandler) UpsertMe(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}

	var body struct {
		DisplayName     *string  `json:"display_name" validate:"omitempty,max=120"`
		Headline        *string  `json:"headline" validate:"omitempty,max=200"`
		Bio             *string  `json:"bio" validate:"omitempty,max=5000"`
		Tags            []string `json:"tags" validate:"omitempty,dive,min=1,max=40"`
		HourlyRateMinor *int64   `json:"hourly_rate_minor"`
		Currency        *string  `json:"currency"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	p, err := h.experts.UpsertProfile(c.Context(), e.UserID(), expert.UpsertProfileRequest{
		DisplayName:     body.DisplayName,
		Headline:        body.Headline,
		Bio:             body.Bio,
		Tags:            body.Tags,
		HourlyRateMinor: body.HourlyRateMinor,
		Currency:        body.Currency,
	})
	if err != nil {
		return mapExpertError(c, err)
	}
	return ok(c, p)
}

// POST /experts/me/publish
func (h *ExpertHandler) PublishMe(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	p, err := h.experts.Publish(c.Context(), e.UserID())
	if err != nil {
		return mapExpertError(c, err)
	}
	return ok(c, p)
}

// POST /experts/me/unpublish
func (h *ExpertHandler) UnpublishMe(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	p, err := h.experts.Unpublish(c.Context(), e.UserID())
	if err != nil {
		return mapExpertError(c, err)
	}
	return ok(c, p)
}

// timeWindow reads the from/to RFC 3339 query parameters. from defaults to
// now, to defaults to from plus span.
func timeWindow(c fiber.Ctx, span time.Duration) (time.Time, time.Time, error) {
	var q struct {
		From string `query:"from"`
		To   string `query:"to"`
	}
	_ = c.Bind().Query(&q)

	from := time.Now().UTC()
	if q.From != "" {
		t, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be an RFC 3339 timestamp")
		}
		from = t
	}
	to := from.Add(span)
	if q.To != "" {
		t, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be an RFC 3339 timestamp")
		}
		to = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}
