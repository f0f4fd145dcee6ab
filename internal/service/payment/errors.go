package payment

import "errors"

var (
	ErrDeclined             = errors.New("payment was declined")
	ErrAuthorizationExpired = errors.New("payment authorization has expired")
	ErrUpstream             = errors.New("payment provider error")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidAmount        = errors.New("amount must be positive")
)
