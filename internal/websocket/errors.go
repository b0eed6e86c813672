package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrInvalidJSON      = errors.New("failed to marshal message to JSON")
	ErrWriteTimeout     = errors.New("write timed out, buffer full")
	ErrNilConnection    = errors.New("connection cannot be nil")
)
