package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/evan-idocoding/zsync/rt/cell"
)

type taskRuntime struct {
	m *Manager

	kind             taskKind
	fn               Func
	name             string
	interval         time.Duration
	startImmediately bool
	timeout          time.Duration

	st cell.Cell[Status]
}

func newTaskRuntime(m *Manager, t Task, c taskConfig) *taskRuntime {
	tr := &taskRuntime{
		m:                m,
		kind:             t.kind(),
		name:             c.name,
		startImmediately: c.startImmediately,
		timeout:          c.timeout,
		st:               cell.New(Status{Name: c.name, State: StateNotStarted}),
	}
	switch tt := t.(type) {
	case triggerTask:
		tr.fn = tt.fn
	case everyTask:
		tr.fn = tt.fn
		tr.interval = tt.interval
	}
	if tr.fn == nil {
		panic("task: nil Func")
	}
	if tr.kind == kindEvery && tr.interval <= 0 {
		panic(fmt.Sprintf("task: Every interval=%s is invalid (must be > 0)", tr.interval))
	}
	return tr
}

func (tr *taskRuntime) Name() string { return tr.name }

func (tr *taskRuntime) Status() Status { return tr.st.Snapshot() }

func (tr *taskRuntime) TryTrigger() bool { return tr.start(nil) == nil }

func (tr *taskRuntime) TriggerAndWait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)
	if err := tr.start(done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// activateLocked moves the task to idle and starts its scheduler. m.mu is held
// and the manager is running.
func (tr *taskRuntime) activateLocked(ctx context.Context) {
	_ = tr.st.MeasureAndReplace(func(st Status) (Status, bool, error) {
		if st.State != StateNotStarted {
			return st, false, nil
		}
		st.State = StateIdle
		return st, true, nil
	})
	if tr.kind == kindEvery {
		tr.m.wg.Add(1)
		go tr.schedule(ctx)
	}
}

func (tr *taskRuntime) markStopped() {
	_ = tr.st.MeasureAndReplace(func(st Status) (Status, bool, error) {
		st.State = StateStopped
		st.NextRun = time.Time{}
		return st, true, nil
	})
}

// beginRun admits a run unless the task is not started, stopped or already
// running.
func beginRun(now time.Time) func(Status) (Status, bool, error) {
	return func(st Status) (Status, bool, error) {
		switch st.State {
		case StateNotStarted:
			return st, false, ErrNotRunning
		case StateStopped:
			return st, false, ErrClosed
		case StateRunning:
			return st, false, ErrSkipped
		}
		st.State = StateRunning
		st.RunCount++
		st.LastStarted = now
		return st, true, nil
	}
}

// endRun records the outcome of a run started at started.
func endRun(started, now time.Time, err error, canceled bool) func(Status) (Status, bool, error) {
	return func(st Status) (Status, bool, error) {
		if st.State == StateRunning {
			st.State = StateIdle
		}
		st.LastFinished = now
		st.LastDuration = now.Sub(started)
		switch {
		case err == nil:
			st.SuccessCount++
			st.LastSuccess = now
			st.Failing = false
		case canceled:
			st.CanceledCount++
		default:
			st.FailCount++
			st.LastError = err.Error()
			st.Failing = true
		}
		return st, true, nil
	}
}

// start launches one run. done, if non-nil, must be buffered; it receives the
// run's error.
func (tr *taskRuntime) start(done chan<- error) error {
	m := tr.m
	m.mu.Lock()
	switch m.state {
	case managerRunning:
	case managerNotStarted:
		m.mu.Unlock()
		return ErrNotRunning
	default:
		m.mu.Unlock()
		return ErrClosed
	}
	if err := tr.st.MeasureAndReplace(beginRun(time.Now())); err != nil {
		m.mu.Unlock()
		return err
	}
	ctx := m.ctx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		err := tr.run(ctx)
		if done != nil {
			done <- err
		}
	}()
	return nil
}

func (tr *taskRuntime) run(parent context.Context) (err error) {
	started := time.Now()
	defer func() {
		logger := tr.m.logger()
		canceled := false
		if p := recover(); p != nil {
			logger.Error("task: run panicked", "task", tr.name, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			err = ErrPanicked
		} else if err != nil {
			canceled = parent.Err() != nil &&
				(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
			if !canceled {
				logger.Warn("task: run failed", "task", tr.name, "err", err)
			}
		}
		_ = tr.st.MeasureAndReplace(endRun(started, time.Now(), err, canceled))
	}()

	ctx := parent
	if tr.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, tr.timeout)
		defer cancel()
	}
	return tr.fn(ctx)
}

// schedule drives an Every task until ctx ends or the manager closes.
func (tr *taskRuntime) schedule(ctx context.Context) {
	defer tr.m.wg.Done()
	if !tr.startImmediately && !tr.sleep(ctx) {
		return
	}
	for {
		done := make(chan error, 1)
		switch err := tr.start(done); {
		case err == nil:
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
		case errors.Is(err, ErrSkipped):
		default:
			return
		}
		if !tr.sleep(ctx) {
			return
		}
	}
}

func (tr *taskRuntime) sleep(ctx context.Context) bool {
	next := time.Now().Add(tr.interval)
	_ = tr.st.MeasureAndReplace(func(st Status) (Status, bool, error) {
		st.NextRun = next
		return st, true, nil
	})
	t := time.NewTimer(tr.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
