package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLimited indicates a request was denied by the limiter.
	// Denials are returned as *NotUntilError, which wraps ErrLimited.
	ErrLimited = errors.New("ratelimit: limited")
	// ErrInsufficientCapacity indicates a request for more units than the burst.
	ErrInsufficientCapacity = errors.New("ratelimit: insufficient capacity")
	// ErrInvalidCount indicates a request for zero or negative units.
	ErrInvalidCount = errors.New("ratelimit: invalid count")
	// ErrInvalidConfig indicates invalid GCRA parameters.
	ErrInvalidConfig = errors.New("ratelimit: invalid config")
)

// NotUntilError is returned for a denied request.
type NotUntilError struct {
	// EarliestAt is the earliest time at which the same request can succeed,
	// assuming no other request is admitted in between.
	EarliestAt time.Time
	// Now is the time the decision was made at.
	Now time.Time
}

func (e *NotUntilError) Error() string {
	return fmt.Sprintf("ratelimit: limited, retry in %s", e.Wait())
}

func (e *NotUntilError) Unwrap() error { return ErrLimited }

// Wait returns how long after the decision the request can be retried.
func (e *NotUntilError) Wait() time.Duration {
	return e.EarliestAt.Sub(e.Now)
}
