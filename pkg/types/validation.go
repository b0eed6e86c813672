package types

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Single validator instance; struct tag parsing is cached internally so the
// shared instance is cheap across all relay traffic.
var validate = validator.New(validator.WithRequiredStructEnabled())

var classIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePayload runs struct-tag validation on a decoded event payload.
// Validation errors are wrapped in ErrMalformedPayload so the relay can treat
// every decode failure uniformly (drop and log, never propagate downstream).
func ValidatePayload(payload interface{}) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// IsValidClassID checks classroom identifier format. The same rule applies to
// REST path segments and event payloads.
func IsValidClassID(classID string) bool {
	if len(classID) < 1 || len(classID) > 64 {
		return false
	}
	return classIDRegex.MatchString(classID)
}
