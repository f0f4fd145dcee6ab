package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrForbidden          = errors.New("not a participant of this booking")
	ErrStaleState         = errors.New("booking was changed by another request")
	ErrInvalidState       = errors.New("operation not allowed in the current booking status")
	ErrInvariantViolation = errors.New("booking expert does not match slot owner")
	ErrExpertUnavailable  = errors.New("expert is not accepting bookings")
	ErrSlotInPast         = errors.New("slot has already started")
	ErrSlotMismatch       = errors.New("proposed slot must belong to the same expert and have the same duration")
	ErrNoProposal         = errors.New("booking has no open proposal")
	ErrSessionStarted     = errors.New("session has already started")
	ErrSessionNotStarted  = errors.New("session has not started yet")
	ErrSessionNotEnded    = errors.New("session has not ended yet")
	ErrNoPayment          = errors.New("booking has no captured payment")
	ErrInvalidFilter      = errors.New("invalid booking filter")
)

// PendingError reports a booking that was created but whose payment
// authorization could not be completed. The booking stays pending and the
// authorization can be retried.
type PendingError struct {
	BookingID uuid.UUID
	Err       error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("booking %s is pending: %v", e.BookingID, e.Err)
}

func (e *PendingError) Unwrap() error { return e.Err }
