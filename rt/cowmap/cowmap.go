package cowmap

import (
	"sync"
	"sync/atomic"
)

// ShallowCopier is implemented by map values.
//
// ShallowCopy must return a value that shares any mutable state with the
// receiver; it must not copy that state.
type ShallowCopier[V any] interface {
	ShallowCopy() V
}

// Map is a copy-on-write map. It is safe for concurrent use.
type Map[K comparable, V ShallowCopier[V]] struct {
	// mu serializes writers. Readers never take it.
	mu  sync.Mutex
	cur atomic.Pointer[generation[K, V]]
}

type generation[K comparable, V any] struct {
	m       map[K]V
	version uint64
}

// Get returns the value stored for k in the current generation.
func (m *Map[K, V]) Get(k K) (v V, ok bool) {
	g := m.cur.Load()
	if g == nil {
		return v, false
	}
	v, ok = g.m[k]
	return v, ok
}

// Len returns the number of entries in the current generation.
func (m *Map[K, V]) Len() int {
	g := m.cur.Load()
	if g == nil {
		return 0
	}
	return len(g.m)
}

// Version returns the number of generations published so far.
// It is 0 for a map that was never written.
func (m *Map[K, V]) Version() uint64 {
	g := m.cur.Load()
	if g == nil {
		return 0
	}
	return g.version
}

// Range calls fn for every entry of the current generation, in unspecified
// order, until fn returns false. Concurrent writes do not affect an ongoing Range.
func (m *Map[K, V]) Range(fn func(k K, v V) bool) {
	g := m.cur.Load()
	if g == nil {
		return
	}
	for k, v := range g.m {
		if !fn(k, v) {
			return
		}
	}
}

// Keys returns the keys of the current generation, in unspecified order.
func (m *Map[K, V]) Keys() []K {
	g := m.cur.Load()
	if g == nil {
		return nil
	}
	out := make([]K, 0, len(g.m))
	for k := range g.m {
		out = append(out, k)
	}
	return out
}

// Snapshot returns a detached map holding shallow copies of the current values.
func (m *Map[K, V]) Snapshot() map[K]V {
	g := m.cur.Load()
	if g == nil {
		return map[K]V{}
	}
	out := make(map[K]V, len(g.m))
	for k, v := range g.m {
		out[k] = v.ShallowCopy()
	}
	return out
}

// Insert stores v for k, replacing any previous value, and publishes a new generation.
func (m *Map[K, V]) Insert(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.duplicate(1)
	next.m[k] = v
	m.cur.Store(next)
}

// GetOrInsert returns the value stored for k. If there is none, it stores the
// value returned by mk and returns it with loaded == false.
//
// The lookup is lock-free; mk is called at most once, under the writer lock,
// and only when k is still missing there.
func (m *Map[K, V]) GetOrInsert(k K, mk func() V) (v V, loaded bool) {
	if v, ok := m.Get(k); ok {
		return v, true
	}
	if mk == nil {
		panic("cowmap: nil constructor")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.cur.Load(); g != nil {
		if v, ok := g.m[k]; ok {
			return v, true
		}
	}
	v = mk()
	next := m.duplicate(1)
	next.m[k] = v
	m.cur.Store(next)
	return v, false
}

// Remove deletes k. It reports whether k was present; a missing key does not
// publish a new generation.
func (m *Map[K, V]) Remove(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.cur.Load()
	if g == nil {
		return false
	}
	if _, ok := g.m[k]; !ok {
		return false
	}
	next := m.duplicate(0)
	delete(next.m, k)
	m.cur.Store(next)
	return true
}

// RemoveIf deletes every entry for which pred returns true, in one generation,
// and returns how many were removed.
//
// pred runs under the writer lock: it must be fast and must not write to m.
func (m *Map[K, V]) RemoveIf(pred func(k K, v V) bool) int {
	if pred == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.cur.Load()
	if g == nil {
		return 0
	}
	var drop []K
	for k, v := range g.m {
		if pred(k, v) {
			drop = append(drop, k)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	next := m.duplicate(0)
	for _, k := range drop {
		delete(next.m, k)
	}
	m.cur.Store(next)
	return len(drop)
}

// Clear removes all entries.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.cur.Load()
	if g == nil || len(g.m) == 0 {
		return
	}
	m.cur.Store(&generation[K, V]{m: make(map[K]V), version: g.version + 1})
}

// duplicate builds the next generation from the current one. Callers hold mu.
func (m *Map[K, V]) duplicate(extra int) *generation[K, V] {
	g := m.cur.Load()
	if g == nil {
		return &generation[K, V]{m: make(map[K]V, extra), version: 1}
	}
	next := &generation[K, V]{m: make(map[K]V, len(g.m)+extra), version: g.version + 1}
	for k, v := range g.m {
		next.m[k] = v.ShallowCopy()
	}
	return next
}
