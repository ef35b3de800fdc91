package services

import (
	"errors"
	"fmt"

	"ripple/app/repositories"
)

// ErrNotFound mirrors the repository sentinel so callers only need this
// package to classify failures.
var ErrNotFound = repositories.ErrNotFound

// ErrForbidden is returned when a caller attempts an operation reserved
// for the content's author.
var ErrForbidden = errors.New("forbidden")

// ValidationError rejects a request before any state is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
