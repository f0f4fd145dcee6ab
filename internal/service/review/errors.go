package review

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrNotCompleted    = errors.New("only completed sessions can be reviewed")
	ErrNotParticipant  = errors.New("only the booking's learner or expert can review it")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrAlreadyReviewed = errors.New("session already reviewed")
	ErrSessionNotFound = errors.New("session not found")
	ErrCommentTooLong  = errors.New("comment must be 2000 characters or less")
)
