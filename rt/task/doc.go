// Package task runs background maintenance work, such as pruning idle limiter
// keys, under one Manager with explicit start and graceful shutdown.
//
// # Tasks
//
//   - Every: runs periodically with fixed-delay scheduling. The next run is due
//     one interval after the previous run finishes.
//   - Trigger: runs only on demand through Handle.TryTrigger or
//     Handle.TriggerAndWait.
//
// A task never overlaps itself. A run requested while one is in progress is
// skipped (TryTrigger returns false, TriggerAndWait returns ErrSkipped). A
// skipped scheduled run waits for the next interval.
//
// Each task keeps its status in a cell.Cell; starting and finishing a run are
// MeasureAndReplace decisions on that cell, so Status never observes a
// half-recorded run.
//
// # Lifecycle
//
//	m := task.NewManager(task.WithLogger(logger))
//	m.MustAdd(limiter.PruneTask(time.Minute), task.WithName("ratelimit-prune"))
//	_ = m.Start(ctx)
//	defer m.Shutdown(context.Background())
//
// Start is not idempotent: a second call returns ErrAlreadyStarted. Tasks can be
// added before or after Start. Shutdown cancels the context passed to running
// tasks and waits for them and their schedulers to exit. During and after
// Shutdown, Add returns ErrClosed and triggers are refused with ErrClosed.
// Triggering before Start returns ErrNotRunning.
//
// # Failures
//
// A run that returns an error is counted as failed and logged at Warn. A run
// that panics is recovered, logged at Error with its stack, and counted as
// failed with ErrPanicked. A run that returns a context error because the
// manager is shutting down is counted as canceled and not logged.
package task
