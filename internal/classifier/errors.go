package classifier

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindUnreachable: the endpoint could not be reached (dial, timeout).
	KindUnreachable ErrorKind = "unreachable"
	// KindBadStatus: the endpoint answered outside the 2xx range.
	KindBadStatus ErrorKind = "bad_status"
	// KindBadPayload: the response body could not be decoded as a verdict.
	KindBadPayload ErrorKind = "bad_payload"
	// KindUnavailable: the circuit breaker is open, no call was attempted.
	KindUnavailable ErrorKind = "unavailable"
)

// ClassificationError is any failure of the scoring call. The pipeline maps
// every kind to "no alert, log and continue".
type ClassificationError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("classification %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("classification %s: %v", e.Kind, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// KindOf extracts the error kind, or "" when err is not a classification error.
func KindOf(err error) ErrorKind {
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
