package ratelimit

// PoisonKey poisons the cell behind key the way a panicking decision would and
// reports whether it is now poisoned.
func PoisonKey[K comparable](l *Keyed[K], key K) bool {
	c, ok := l.cells.Get(key)
	if !ok {
		return false
	}
	func() {
		defer func() { _ = recover() }()
		_ = c.MeasureAndReplace(func(State) (State, bool, error) { panic("broken decider") })
	}()
	return c.Poisoned()
}
