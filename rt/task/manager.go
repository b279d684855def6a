package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type managerState int

const (
	managerNotStarted managerState = iota
	managerRunning
	managerStopping
	managerStopped
)

// Manager owns a set of tasks and their lifecycle.
//
// It is safe for concurrent use. The zero value is ready to use with the default
// configuration; use NewManager to pass options.
type Manager struct {
	cfg managerConfig

	// mu guards everything below. It is taken before any task status cell.
	mu     sync.Mutex
	state  managerState
	ctx    context.Context
	cancel context.CancelFunc
	tasks  []*taskRuntime
	names  map[string]*taskRuntime

	wg sync.WaitGroup // schedulers and runs
}

// NewManager creates a Manager.
func NewManager(opts ...ManagerOption) *Manager {
	var cfg managerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Manager{cfg: cfg}
}

func (m *Manager) logger() *slog.Logger {
	if m.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return m.cfg.logger
}

// Add registers t and returns its handle. A task added after Start is activated
// immediately. Add panics on a nil Task, a nil Func or a non-positive Every
// interval.
func (m *Manager) Add(t Task, opts ...Option) (Handle, error) {
	if t == nil {
		panic("task: Add called with nil Task")
	}
	var c taskConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	c.name = normalizeName(c.name)
	if err := validateName(c.name); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidName, c.name, err)
	}
	tr := newTaskRuntime(m, t, c)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state >= managerStopping {
		return nil, ErrClosed
	}
	if c.name != "" {
		if _, dup := m.names[c.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.name)
		}
		if m.names == nil {
			m.names = make(map[string]*taskRuntime)
		}
		m.names[c.name] = tr
	}
	m.tasks = append(m.tasks, tr)
	if m.state == managerRunning {
		tr.activateLocked(m.ctx)
	}
	return tr, nil
}

// MustAdd is like Add but panics on error. Use it for wiring at startup.
func (m *Manager) MustAdd(t Task, opts ...Option) Handle {
	h, err := m.Add(t, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Start activates every registered task. Runs receive a context derived from
// ctx; cancelling ctx stops the schedulers like Shutdown does, without waiting.
//
// A nil ctx is treated as context.Background().
func (m *Manager) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != managerNotStarted {
		return ErrAlreadyStarted
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.state = managerRunning
	for _, tr := range m.tasks {
		tr.activateLocked(m.ctx)
	}
	return nil
}

// Shutdown stops scheduling, cancels running tasks and waits for them to exit or
// for ctx to end, whichever comes first. If ctx ends first, Shutdown returns
// ctx.Err() and can be called again to keep waiting.
//
// Shutdown without Start marks all tasks stopped. A nil ctx is treated as
// context.Background().
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	switch m.state {
	case managerNotStarted:
		m.state = managerStopped
		tasks := append([]*taskRuntime(nil), m.tasks...)
		m.mu.Unlock()
		for _, tr := range tasks {
			tr.markStopped()
		}
		return nil
	case managerRunning:
		m.state = managerStopping
		m.cancel()
	case managerStopped:
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	m.state = managerStopped
	tasks := append([]*taskRuntime(nil), m.tasks...)
	m.mu.Unlock()
	for _, tr := range tasks {
		tr.markStopped()
	}
	return nil
}

// Wait blocks until all schedulers and runs have exited.
func (m *Manager) Wait() { m.wg.Wait() }

// Snapshot returns the status of every task, in Add order.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	tasks := append([]*taskRuntime(nil), m.tasks...)
	m.mu.Unlock()

	out := Snapshot{Tasks: make([]Status, 0, len(tasks))}
	for _, tr := range tasks {
		out.Tasks = append(out.Tasks, tr.Status())
	}
	return out
}

// Lookup finds a task by name. Names are trimmed; unnamed tasks are not indexed.
func (m *Manager) Lookup(name string) (Handle, bool) {
	name = normalizeName(name)
	if name == "" {
		return nil, false
	}
	m.mu.Lock()
	tr, ok := m.names[name]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return tr, true
}
