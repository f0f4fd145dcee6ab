package stripepay

import (
	"errors"
	"fmt"
)

var (
	ErrCardDeclined         = errors.New("stripe: card declined")
	ErrAuthorizationExpired = errors.New("stripe: authorization expired")
	ErrInvalidSignature     = errors.New("stripe: invalid webhook signature")
	ErrConfig               = errors.New("stripe: invalid configuration")
)

// ErrAPI is any other failure talking to Stripe.
type ErrAPI struct {
	Op     string
	Status int
	Code   string
	Err    error
}

func (e ErrAPI) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe %s failed (status=%d, code=%s): %v", e.Op, e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("stripe %s failed: %v", e.Op, e.Err)
}

func (e ErrAPI) Unwrap() error { return e.Err }
