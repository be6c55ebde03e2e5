package services

import (
	"errors"
	"strings"
)

// ValidationError reports why a definition was rejected. Details are
// human-readable and safe to return to API clients.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow definition: " + strings.Join(e.Details, "; ")
}

func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}
