package cell

import (
	"fmt"
	"io"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Cloner is implemented by values that need a deeper copy than Go assignment
// for Snapshot (for example values holding maps or slices).
type Cloner[T any] interface {
	Clone() T
}

// Equaler is implemented by values with their own notion of equality.
// Cells holding values that do not implement it are compared with reflect.DeepEqual.
type Equaler[T any] interface {
	Equal(T) bool
}

// Cell is a handle to a mutex-guarded value of type T.
//
// Copies of a Cell share the same lock and value. The zero Cell has no state and
// panics on use; create cells with New or NewDefault.
type Cell[T any] struct {
	s *shared[T]
}

type shared[T any] struct {
	mu sync.Mutex
	v  T

	// poison is written and read only while holding mu.
	poison   *PoisonError
	poisoned atomic.Bool

	reentrancyCheck bool
	owner           atomic.Uint64 // goroutine id of the holder, only with reentrancyCheck.
}

// New creates a cell holding v.
func New[T any](v T, opts ...Option) Cell[T] {
	cfg := applyOptions(opts)
	return Cell[T]{s: &shared[T]{v: v, reentrancyCheck: cfg.reentrancyCheck}}
}

// NewDefault creates a cell holding the zero value of T.
func NewDefault[T any](opts ...Option) Cell[T] {
	var zero T
	return New(zero, opts...)
}

// MeasureAndReplace runs decide on the current value and, if replace is true,
// stores next before any other caller can observe the cell.
//
// decide is invoked exactly once, with the lock held. The returned error is
// decide's error, unchanged.
//
// MeasureAndReplace blocks until the lock is available. It panics with a
// *PoisonError if the cell is poisoned.
func (c Cell[T]) MeasureAndReplace(decide func(cur T) (next T, replace bool, err error)) error {
	return Apply(c, decide)
}

// Apply is MeasureAndReplace for decisions whose outcome is not an error.
//
// fn is invoked exactly once, with the lock held; out is returned unchanged.
func Apply[T, R any](c Cell[T], fn func(cur T) (next T, replace bool, out R)) R {
	if fn == nil {
		panic("cell: nil decision func")
	}
	var out R
	c.state().with(func(v *T) {
		next, replace, r := fn(*v)
		if replace {
			*v = next
		}
		out = r
	})
	return out
}

// Snapshot returns a detached copy of the current value.
//
// The copy reflects some moment during the call and nothing more: it is
// advisory, suitable for diagnostics and logging, never for further decisions.
func (c Cell[T]) Snapshot() T {
	var out T
	c.state().with(func(v *T) { out = cloneValue(*v) })
	return out
}

// Equal reports whether the values currently held by c and other are equal.
//
// Each cell is observed under its own lock, one after the other, so the result
// is a momentary comparison. Comparing cells that are being mutated concurrently
// is inherently racy.
//
// The values are compared after both locks are released: a panicking
// Equaler does not poison either cell.
func (c Cell[T]) Equal(other Cell[T]) bool {
	a, b := c.state(), other.state()
	if a == b {
		// Same state; still surface poisoning.
		a.with(func(*T) {})
		return true
	}
	return equalValues(c.Snapshot(), other.Snapshot())
}

// Clone returns a second handle to the same state. It does not copy the value.
func (c Cell[T]) Clone() Cell[T] {
	c.state()
	return c
}

// ShallowCopy duplicates the handle for copy-on-write containers.
// The result shares the lock and value with c.
func (c Cell[T]) ShallowCopy() Cell[T] { return c.Clone() }

// Same reports whether c and other are handles to the same state.
func (c Cell[T]) Same(other Cell[T]) bool {
	return c.s != nil && c.s == other.s
}

// IsZero reports whether c is the zero Cell (no state).
func (c Cell[T]) IsZero() bool { return c.s == nil }

// Poisoned reports whether a previous holder panicked while holding the lock.
// It does not acquire the lock.
func (c Cell[T]) Poisoned() bool { return c.state().poisoned.Load() }

// String formats the current value with %v. It acquires the lock and panics
// with a *PoisonError if the cell is poisoned.
func (c Cell[T]) String() string {
	var s string
	c.state().with(func(v *T) { s = fmt.Sprint(*v) })
	return s
}

// Format implements fmt.Formatter by formatting the current value, under the
// lock, with the same verb and flags. On a poisoned cell it panics; the fmt
// functions recover that and print "%!v(PANIC=Format method: ...)".
func (c Cell[T]) Format(f fmt.State, verb rune) {
	var s string
	c.state().with(func(v *T) { s = fmt.Sprintf(fmt.FormatString(f, verb), *v) })
	_, _ = io.WriteString(f, s)
}

func (c Cell[T]) state() *shared[T] {
	if c.s == nil {
		panic("cell: zero Cell; use New or NewDefault")
	}
	return c.s
}

// with runs fn while holding the lock. If fn panics, the cell is poisoned and
// the panic continues.
func (s *shared[T]) with(fn func(v *T)) {
	s.lock()
	ok := false
	defer func() {
		if ok {
			return
		}
		p := recover()
		s.poison = &PoisonError{Value: p, Stack: debug.Stack()}
		s.poisoned.Store(true)
		s.unlock()
		if p != nil {
			panic(p)
		}
		// p == nil: fn called runtime.Goexit; let it proceed.
	}()
	fn(&s.v)
	ok = true
	s.unlock()
}

func (s *shared[T]) lock() {
	if s.reentrancyCheck {
		gid := curGoroutineID()
		if !s.mu.TryLock() {
			if gid != 0 && s.owner.Load() == gid {
				panic(ErrReentrant)
			}
			s.mu.Lock()
		}
		s.owner.Store(gid)
	} else {
		s.mu.Lock()
	}
	if p := s.poison; p != nil {
		s.unlock()
		panic(p)
	}
}

func (s *shared[T]) unlock() {
	if s.reentrancyCheck {
		s.owner.Store(0)
	}
	s.mu.Unlock()
}

func cloneValue[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}

func equalValues[T any](a, b T) bool {
	if e, ok := any(a).(Equaler[T]); ok {
		return e.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
