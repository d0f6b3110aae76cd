package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents an error occurring during request validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ParseBoundedInt parses an optional integer parameter. An empty value yields
// def; anything unparsable or outside [min, max] is a ValidationError.
func ParseBoundedInt(field, raw string, def, min, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%s must be an integer, got %q", field, raw)}
	}
	if n < min || n > max {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%s must be between %d and %d, got %d", field, min, max, n)}
	}
	return n, nil
}
