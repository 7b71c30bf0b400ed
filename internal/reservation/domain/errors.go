package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateActiveLine is returned by the repository when creating a
// reservation would violate the one-active-hold-per-reference-line index.
// A concurrent writer already holds the line; callers fall back to the
// winner's reservation set.
var ErrDuplicateActiveLine = errors.New("active reservation already exists for this reference line")

// PartialReservationError is returned when a multi-line reserve failed
// partway. All lines reserved before the failure have been compensated;
// the caller retries the whole request.
type PartialReservationError struct {
	ReferenceID   string
	ReferenceType string
	FailedLine    Line
	Cause         error
}

func (e *PartialReservationError) Error() string {
	return fmt.Sprintf("reservation for %s/%s failed at %s@%s (qty %d): %v",
		e.ReferenceType, e.ReferenceID, e.FailedLine.SKU, e.FailedLine.LocationID,
		e.FailedLine.Quantity, e.Cause)
}

func (e *PartialReservationError) Unwrap() error {
	return e.Cause
}

// NoActiveReservationError is returned when a commit or sweep finds nothing
// active for a reference: never reserved, already committed, released, or
// expired. The caller decides whether that is a no-op or an error.
type NoActiveReservationError struct {
	ReferenceID   string
	ReferenceType string
}

func (e *NoActiveReservationError) Error() string {
	return fmt.Sprintf("no active reservation for %s/%s", e.ReferenceType, e.ReferenceID)
}
