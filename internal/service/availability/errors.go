package availability

import "errors"

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotUnavailable  = errors.New("slot is not available")
	ErrSlotInUse        = errors.New("slot is held or booked")
	ErrSlotNotBlocked   = errors.New("slot is not blocked")
	ErrNotOwner         = errors.New("slot belongs to another expert")
	ErrOverlap          = errors.New("slot overlaps an existing slot")
	ErrNoRanges         = errors.New("at least one range is required")
	ErrInvalidTimeRange = errors.New("end must be after start")
	ErrPastRange        = errors.New("slots must start in the future")
	ErrInvalidWeekly    = errors.New("invalid weekly pattern")
	ErrInvalidTimezone  = errors.New("invalid timezone")
)
