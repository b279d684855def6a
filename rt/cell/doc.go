// Package cell provides Cell, a generic mutex-guarded state cell with a single
// atomic read-decide-write operation.
//
// It is designed to be small and explicit: a Cell owns exactly one value of
// type T, and the only way to change it is MeasureAndReplace, which observes the
// current value, lets a caller-supplied function decide an outcome and an
// optional replacement, and commits the replacement before any other caller can
// observe the cell again.
//
// # Handles and ownership
//
// Cell is a handle. Copying a Cell (assignment, Clone, ShallowCopy) produces a
// second owner of the same lock and value; it never copies the state. This is
// what copy-on-write containers (see rt/cowmap) need when they duplicate values
// into a new generation: both generations keep mutating the same logical state.
//
// Snapshot is the opposite: it returns a detached copy of the current value.
// If T implements Cloner, Snapshot uses Clone; otherwise it is a plain Go value
// copy (which shares any memory referenced by pointers, slices or maps inside T).
//
// Snapshots are advisory. By the time a caller looks at one, the live value may
// have changed. Use them for diagnostics and logging; any decision that must be
// consistent goes back through MeasureAndReplace.
//
// # Decision functions
//
// The function passed to MeasureAndReplace (or Apply) is invoked exactly once per
// call, while the lock is held. It must:
//   - be free of side effects other than its return values,
//   - not mutate memory reachable from the value it is given,
//   - not call back into the same cell (the lock is not re-entrant).
//
// The error it returns is passed through to the caller unchanged.
//
// # Poisoning
//
// If a holder panics while holding the lock (inside a decision function, Clone
// or formatting), the cell is poisoned and the panic continues to unwind.
// Every later acquisition panics with a *PoisonError. This is deliberate:
// possibly half-updated shared state must not be used silently. A poisoned cell
// stays poisoned for the rest of its life.
//
// Equaler.Equal runs on snapshots after both locks are released, so a panic
// there reaches the caller but poisons neither cell.
//
// String and Format panic on a poisoned cell like any other acquisition, but
// the fmt package recovers panics from Format: fmt.Sprint(c) yields
// "%!v(PANIC=Format method: cell: poisoned by panic: ...)" instead of
// panicking. Check Poisoned, or call Snapshot, where that matters.
//
// # Quick start
//
//	c := cell.New(0)
//	err := c.MeasureAndReplace(func(n int) (int, bool, error) {
//		if n >= 10 {
//			return n, false, errFull
//		}
//		return n + 1, true, nil
//	})
//	fmt.Println(c.Snapshot(), err)
package cell
