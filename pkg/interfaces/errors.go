package interfaces

import "errors"

// Common errors shared across component boundaries.
var (
	ErrClassroomNotFound = errors.New("classroom not found")
	ErrInvalidToken      = errors.New("invalid or expired token")
)
