package cell

import (
	"errors"
	"fmt"
)

var (
	// ErrPoisoned indicates a previous holder panicked while holding the lock.
	ErrPoisoned = errors.New("cell: poisoned")
	// ErrReentrant indicates a goroutine tried to acquire a cell it already holds.
	//
	// It is only detected when the cell was created with WithReentrancyCheck.
	ErrReentrant = errors.New("cell: re-entrant acquisition")
)

// PoisonError is the panic value raised when a poisoned cell is acquired.
//
// It is never returned as an ordinary error: it signals a broken lock, not a
// business outcome.
type PoisonError struct {
	// Value is the value the original holder panicked with.
	Value any
	// Stack is the stack trace captured when the original holder panicked.
	Stack []byte
}

func (e *PoisonError) Error() string {
	return fmt.Sprintf("cell: poisoned by panic: %v", e.Value)
}

func (e *PoisonError) Unwrap() error { return ErrPoisoned }
