package persistence

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by latest-row queries when the store is empty.
// Callers must branch on it instead of assuming a row exists.
var ErrNotFound = errors.New("record not found")

// ValidationError reports a field that is absent or out of domain.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
