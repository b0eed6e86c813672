package types

import "errors"

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
	ErrInvalidClassID   = errors.New("class ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
)
