package ratelimit

import (
	"github.com/evan-idocoding/zsync/rt/cell"
)

// Limiter is a single GCRA limiter. It is safe for concurrent use.
type Limiter struct {
	g   GCRA
	cfg config
	m   *metrics
	st  cell.Cell[State]
}

// New creates a Limiter. It panics if g is the zero GCRA.
func New(g GCRA, opts ...Option) *Limiter {
	if !g.valid() {
		panic("ratelimit: zero GCRA; use NewGCRA")
	}
	cfg := applyOptions(opts)
	return &Limiter{
		g:   g,
		cfg: cfg,
		m:   newMetrics(cfg.mp, cfg.name),
		st:  cell.NewDefault[State](),
	}
}

// Check asks for a single unit.
func (l *Limiter) Check() error { return l.CheckN(1) }

// CheckN asks for n units at once. It returns nil if they were admitted.
func (l *Limiter) CheckN(n int) error {
	err := l.st.MeasureAndReplace(l.g.Decide(l.cfg.now(), n))
	l.m.recordDecision(err)
	return err
}

// Snapshot returns the current state. It is advisory only.
func (l *Limiter) Snapshot() State { return l.st.Snapshot() }

// GCRA returns the limiter parameters.
func (l *Limiter) GCRA() GCRA { return l.g }
