package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/evan-idocoding/zsync/rt/cell"
	"github.com/evan-idocoding/zsync/rt/cowmap"
	"github.com/evan-idocoding/zsync/rt/task"
)

// Keyed is a set of independent GCRA limiters sharing one GCRA, one per key.
//
// Each key owns one cell.Cell; decisions on different keys never contend.
// Keys are created on first use and removed by Prune once fully replenished.
// It is safe for concurrent use.
type Keyed[K comparable] struct {
	g     GCRA
	cfg   config
	m     *metrics
	cells cowmap.Map[K, cell.Cell[State]]

	pruned atomic.Uint64
}

// Entry is a point-in-time view of one key. A poisoned key has a zero TAT.
type Entry struct {
	Key       string    `json:"key"`
	TAT       time.Time `json:"tat"`
	Throttled bool      `json:"throttled"`
	Poisoned  bool      `json:"poisoned,omitempty"`
}

// Stats summarizes a keyed limiter.
//
// Keys counts every tracked key, poisoned ones included. Poisoned keys are
// never counted as throttled; they stay until the next Prune.
type Stats struct {
	Keys       int    `json:"keys"`
	Throttled  int    `json:"throttled"`
	Poisoned   int    `json:"poisoned"`
	Generation uint64 `json:"generation"`
	Pruned     uint64 `json:"pruned"`
}

// NewKeyed creates a keyed limiter. It panics if g is the zero GCRA.
func NewKeyed[K comparable](g GCRA, opts ...Option) *Keyed[K] {
	if !g.valid() {
		panic("ratelimit: zero GCRA; use NewGCRA")
	}
	cfg := applyOptions(opts)
	return &Keyed[K]{
		g:   g,
		cfg: cfg,
		m:   newMetrics(cfg.mp, cfg.name),
	}
}

// Check asks for a single unit for key.
func (l *Keyed[K]) Check(key K) error { return l.CheckN(key, 1) }

// CheckN asks for n units for key. It returns nil if they were admitted.
func (l *Keyed[K]) CheckN(key K, n int) error {
	c, loaded := l.cells.GetOrInsert(key, newStateCell)
	if !loaded {
		l.m.recordKeyCreated()
		l.cfg.logger.Debug("ratelimit: key created", "limiter", l.cfg.name, "key", fmt.Sprint(key))
	}
	err := c.MeasureAndReplace(l.g.Decide(l.cfg.now(), n))
	l.m.recordDecision(err)
	return err
}

// Len returns the number of tracked keys.
func (l *Keyed[K]) Len() int { return l.cells.Len() }

// Snapshot returns the state of every tracked key that is not poisoned. It is
// advisory only.
func (l *Keyed[K]) Snapshot() map[K]State {
	out := make(map[K]State, l.cells.Len())
	l.cells.Range(func(k K, c cell.Cell[State]) bool {
		if s, ok := peek(c); ok {
			out[k] = s
		}
		return true
	})
	return out
}

// Entries returns a view of every tracked key, sorted by its string form.
func (l *Keyed[K]) Entries() []Entry {
	now := l.cfg.now()
	var out []Entry
	l.cells.Range(func(k K, c cell.Cell[State]) bool {
		e := Entry{Key: fmt.Sprint(k)}
		if s, ok := peek(c); ok {
			e.TAT = s.TAT
			e.Throttled = l.g.Throttled(s, now)
		} else {
			e.Poisoned = true
		}
		out = append(out, e)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats returns a summary of the tracked keys.
func (l *Keyed[K]) Stats() Stats {
	now := l.cfg.now()
	st := Stats{Generation: l.cells.Version(), Pruned: l.pruned.Load()}
	l.cells.Range(func(_ K, c cell.Cell[State]) bool {
		st.Keys++
		s, ok := peek(c)
		switch {
		case !ok:
			st.Poisoned++
		case l.g.Throttled(s, now):
			st.Throttled++
		}
		return true
	})
	return st
}

// Prune removes keys that are fully replenished, and keys whose cell was
// poisoned by a panicking holder. It returns the number of removed keys.
//
// A decision racing with Prune on a removed key is applied to the detached cell
// and lost, so right after a prune such a key may admit slightly more than its
// rate. Call Prune periodically, not per request; PruneTask does that under a
// task.Manager.
func (l *Keyed[K]) Prune() int {
	now := l.cfg.now()
	n := l.cells.RemoveIf(func(_ K, c cell.Cell[State]) bool {
		s, ok := peek(c)
		return !ok || l.g.Idle(s, now)
	})
	l.pruned.Add(uint64(n))
	if n > 0 {
		l.cfg.logger.Debug("ratelimit: pruned keys", "limiter", l.cfg.name, "removed", n, "remaining", l.cells.Len())
	}
	return n
}

// PruneTask returns a periodic task that calls Prune once per interval.
//
//	m := task.NewManager()
//	m.MustAdd(l.PruneTask(time.Minute), task.WithName("ratelimit-prune"))
func (l *Keyed[K]) PruneTask(interval time.Duration) task.Task {
	return task.Every(interval, func(context.Context) error {
		l.Prune()
		return nil
	})
}

// GCRA returns the limiter parameters.
func (l *Keyed[K]) GCRA() GCRA { return l.g }

// Name returns the limiter name.
func (l *Keyed[K]) Name() string { return l.cfg.name }

func newStateCell() cell.Cell[State] { return cell.NewDefault[State]() }

// peek snapshots c, reporting false instead of panicking if c is poisoned.
// A cell can be poisoned between the Poisoned check and the snapshot, so the
// *cell.PoisonError panic is recovered too. Any other panic propagates.
func peek(c cell.Cell[State]) (s State, ok bool) {
	if c.Poisoned() {
		return State{}, false
	}
	defer func() {
		if p := recover(); p != nil {
			if _, poisoned := p.(*cell.PoisonError); !poisoned {
				panic(p)
			}
			s, ok = State{}, false
		}
	}()
	return c.Snapshot(), true
}
