package notification

import "errors"

var (
	ErrNotFound      = errors.New("notification not found")
	ErrUnknownType   = errors.New("unknown notification type")
	ErrNoRecipient   = errors.New("notification has no recipient")
	ErrInvalidPaging = errors.New("invalid paging parameters")
)
