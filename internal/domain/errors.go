package domain

import (
	"errors"
	"fmt"
)

// Repository failures are classified so callers can decide between retrying
// and surfacing. Transient covers conditions that may clear on their own
// (connection loss, timeouts, pool exhaustion); Permanent covers everything
// that will fail the same way again (constraint violations, bad data).
var (
	ErrTransient = errors.New("transient storage error")
	ErrPermanent = errors.New("permanent storage error")
)

// Transient wraps err as a retryable repository error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent wraps err as a non-retryable repository error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ErrReservationNotFound is returned when an operation names a reservation id
// that was never allocated.
var ErrReservationNotFound = errors.New("reservation not found")
