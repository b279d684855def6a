// Package zsync is a small kit of synchronization building blocks for per-key
// mutable state shared across goroutines, such as rate-limit counters and quota
// trackers.
//
// The root package holds no code; the building blocks live in subpackages:
//
//   - github.com/evan-idocoding/zsync/rt/cell: Cell, a mutex-guarded value with a single
//     atomic read-decide-write operation (MeasureAndReplace), advisory snapshots and
//     fail-fast poisoning when a holder panics
//   - github.com/evan-idocoding/zsync/rt/cowmap: a copy-on-write map with lock-free reads whose
//     values are duplicated shallowly between generations (cells stay shared)
//   - github.com/evan-idocoding/zsync/rt/ratelimit: GCRA limiters, single and keyed, built on
//     cells and cowmap, with OpenTelemetry counters
//   - github.com/evan-idocoding/zsync/rt/task: a small manager for periodic and triggered
//     background tasks, such as pruning idle limiter keys
//   - github.com/evan-idocoding/zsync/ops: net/http snapshot, health, readiness and log-level
//     handlers and a Prometheus collector for keyed limiters
//
// The cmd/zsyncbench command exercises all of them under contention.
//
// # Quick start
//
//	g, _ := ratelimit.NewGCRA(100, time.Second, 10)
//	limiter := ratelimit.NewKeyed[string](g)
//
//	if err := limiter.Check(clientIP); errors.Is(err, ratelimit.ErrLimited) {
//		// reject
//	}
//
// # Division of labor
//
// A cell guarantees how a state transition is applied: atomically, exactly once
// per call, with the decision's error passed through unchanged. It never decides
// what the transition is; that is the caller's decision function (for example
// ratelimit.GCRA.Decide), which must be pure.
package zsync
