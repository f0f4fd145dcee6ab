package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	"github.com/Alijeyrad/rookie_backend/internal/service/availability"
)

type SlotHandler struct {
	svc availability.Service
}

func NewSlotHandler(svc availability.Service) *SlotHandler {
	return &SlotHandler{svc: svc}
}

func mapSlotError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, availability.ErrSlotNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, availability.ErrNotOwner):
		return forbidden(c)
	case errors.Is(err, availability.ErrSlotUnavailable),
		errors.Is(err, availability.ErrSlotInUse),
		errors.Is(err, availability.ErrSlotNotBlocked),
		errors.Is(err, availability.ErrOverlap):
		return conflict(c, err.Error())
	case errors.Is(err, availability.ErrNoRanges),
		errors.Is(err, availability.ErrInvalidTimeRange),
		errors.Is(err, availability.ErrPastRange),
		errors.Is(err, availability.ErrInvalidWeekly),
		errors.Is(err, availability.ErrInvalidTimezone):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

type weeklyBody struct {
	Weekday  int       `json:"weekday" validate:"min=0,max=6"`
	Start    string    `json:"start" validate:"required"`
	End      string    `json:"end" validate:"required"`
	Timezone string    `json:"timezone" validate:"required"`
	From     time.Time `json:"from"`
	Until    time.Time `json:"until"`
}

type rangeBody struct {
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Weekly *weeklyBody `json:"weekly"`
}

// POST /slots
func (h *SlotHandler) Publish(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}

	var body struct {
		Ranges []rangeBody `json:"ranges" validate:"required,min=1,max=100,dive"`
	}
	if bound, err := bindJSON(c, &body); !bound {
		return err
	}

	ranges := make([]availability.Range, 0, len(body.Ranges))
	for i, rb := range body.Ranges {
		r, err := toRange(rb)
		if err != nil {
			return badRequest(c, fmt.Sprintf("ranges[%d]: %v", i, err))
		}
		ranges = append(ranges, r)
	}

	slots, err := h.svc.PublishSlots(c.Context(), e.UserID(), ranges)
	if err != nil {
		return mapSlotError(c, err)
	}
	return created(c, slots)
}

// GET /slots
func (h *SlotHandler) ListMine(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}

	from, to, err := timeWindow(c, 30*24*time.Hour)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var states []schema.SlotState
	if raw := c.Query("state"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			states = append(states, schema.SlotState(strings.TrimSpace(s)))
		}
	}

	slots, err := h.svc.ListSlots(c.Context(), e.UserID(), availability.ListFilter{From: from, To: to, States: states})
	if err != nil {
		return mapSlotError(c, err)
	}
	return ok(c, slots)
}

// POST /slots/:id/block
func (h *SlotHandler) Block(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid slot id")
	}

	if err := h.svc.Block(c.Context(), e.UserID(), id); err != nil {
		return mapSlotError(c, err)
	}
	return noContent(c)
}

// POST /slots/:id/unblock
func (h *SlotHandler) Unblock(c fiber.Ctx) error {
	e, isExpert := expertFromLocals(c)
	if !isExpert {
		return forbidden(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid slot id")
	}

	if err := h.svc.Unblock(c.Context(), e.UserID(), id); err != nil {
		return mapSlotError(c, err)
	}
	return noContent(c)
}

func toRange(rb rangeBody) (availability.Range, error) {
	if rb.Weekly == nil {
		if rb.Start.IsZero() || rb.End.IsZero() {
			return availability.Range{}, errors.New("start and end are required")
		}
		return availability.Range{Start: rb.Start, End: rb.End}, nil
	}

	start, err := clockMinutes(rb.Weekly.Start)
	if err != nil {
		return availability.Range{}, err
	}
	end, err := clockMinutes(rb.Weekly.End)
	if err != nil {
		return availability.Range{}, err
	}
	return availability.Range{Weekly: &availability.WeeklyPattern{
		Weekday:     time.Weekday(rb.Weekly.Weekday),
		StartMinute: start,
		EndMinute:   end,
		Timezone:    rb.Weekly.Timezone,
		From:        rb.Weekly.From,
		Until:       rb.Weekly.Until,
	}}, nil
}

// clockMinutes parses "HH:MM" into minutes after midnight.
func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a HH:MM clock time", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
