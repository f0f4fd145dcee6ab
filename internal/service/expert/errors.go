package expert

import "errors"

var (
	ErrProfileNotFound = errors.New("expert profile not found")
	ErrRateRequired    = errors.New("an hourly rate is required to publish")
	ErrInvalidRate     = errors.New("hourly rate must be positive")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter ISO code")
	ErrTooManyTags     = errors.New("at most 20 tags are allowed")
)
