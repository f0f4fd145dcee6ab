package identity

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRequired      = errors.New("email is required")
	ErrExternalIDRequired = errors.New("external_auth_id is required")
	ErrInvalidRole        = errors.New("role must be learner or expert")
	ErrUnknownRole        = errors.New("user has an unknown role")
	ErrInvalidSecret      = errors.New("invalid webhook secret")

	ErrPasswordAuthDisabled = errors.New("password sign-in is not enabled")
	ErrSignUpRejected       = errors.New("sign-up rejected")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrProviderUnavailable  = errors.New("identity provider unavailable")
)
