package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// GCRA holds the parameters of a GCRA limiter. The zero value is invalid; use NewGCRA.
type GCRA struct {
	interval  time.Duration
	tolerance time.Duration
	burst     int
}

// NewGCRA returns parameters admitting rate units per period, with bursts of up
// to burst units.
func NewGCRA(rate int, per time.Duration, burst int) (GCRA, error) {
	if rate <= 0 {
		return GCRA{}, fmt.Errorf("%w: rate must be > 0, got %d", ErrInvalidConfig, rate)
	}
	if per <= 0 {
		return GCRA{}, fmt.Errorf("%w: period must be > 0, got %s", ErrInvalidConfig, per)
	}
	if burst <= 0 {
		return GCRA{}, fmt.Errorf("%w: burst must be > 0, got %d", ErrInvalidConfig, burst)
	}
	interval := per / time.Duration(rate)
	if interval <= 0 {
		return GCRA{}, fmt.Errorf("%w: %d per %s is finer than 1ns", ErrInvalidConfig, rate, per)
	}
	// tolerance = interval*burst must fit in a time.Duration. Decide never
	// multiplies interval by more than burst, so this bounds it too.
	if int64(burst) > math.MaxInt64/int64(interval) {
		return GCRA{}, fmt.Errorf("%w: burst %d of %s overflows the tolerance", ErrInvalidConfig, burst, interval)
	}
	return GCRA{
		interval:  interval,
		tolerance: interval * time.Duration(burst),
		burst:     burst,
	}, nil
}

// Interval returns the emission interval: the time one unit takes to replenish.
func (g GCRA) Interval() time.Duration { return g.interval }

// Burst returns the maximum number of units admitted at once.
func (g GCRA) Burst() int { return g.burst }

func (g GCRA) valid() bool { return g.interval > 0 && g.burst > 0 }

// State is the per-limiter GCRA state. The zero value is a fully replenished limiter.
type State struct {
	// TAT is the theoretical arrival time of the next unit.
	TAT time.Time `json:"tat"`
}

// Equal compares the TATs as instants.
func (s State) Equal(o State) bool { return s.TAT.Equal(o.TAT) }

// Decide returns the decision function for a request of n units at now.
//
// It is pure: it only reads the state it is given and returns the next state,
// so it can be used with cell.Cell.MeasureAndReplace.
func (g GCRA) Decide(now time.Time, n int) func(State) (State, bool, error) {
	return func(s State) (State, bool, error) {
		if !g.valid() {
			return s, false, fmt.Errorf("%w: zero GCRA", ErrInvalidConfig)
		}
		if n <= 0 {
			return s, false, fmt.Errorf("%w: %d", ErrInvalidCount, n)
		}
		if n > g.burst {
			return s, false, fmt.Errorf("%w: %d units, burst is %d", ErrInsufficientCapacity, n, g.burst)
		}
		tat := s.TAT
		if tat.Before(now) {
			tat = now
		}
		next := tat.Add(g.interval * time.Duration(n))
		allowAt := next.Add(-g.tolerance)
		if now.Before(allowAt) {
			return s, false, &NotUntilError{EarliestAt: allowAt, Now: now}
		}
		return State{TAT: next}, true, nil
	}
}

// Throttled reports whether a single-unit request at now would be denied.
func (g GCRA) Throttled(s State, now time.Time) bool {
	return now.Before(s.TAT.Add(g.interval - g.tolerance))
}

// Idle reports whether s is fully replenished at now, i.e. indistinguishable
// from a fresh State.
func (g GCRA) Idle(s State, now time.Time) bool {
	return !s.TAT.After(now)
}
