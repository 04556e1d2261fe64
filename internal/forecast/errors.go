package forecast

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStationNotFound is returned for an id missing from the registry.
	ErrStationNotFound = errors.New("station not found")
	// ErrUnavailable marks a forecast that cannot be produced right now.
	ErrUnavailable = errors.New("forecast unavailable")
)

// UnavailableError is returned when no usable cycle exists or no forecast hour
// could be loaded. It matches ErrUnavailable and the underlying cause.
type UnavailableError struct {
	StationID  string
	Reason     error
	RetryAfter time.Duration
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("forecast for %s unavailable: %v", e.StationID, e.Reason)
}

func (e *UnavailableError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Reason}
}
