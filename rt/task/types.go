package task

import (
	"context"
	"fmt"
	"time"
)

// Func is the work run by a task. A non-nil error marks the run as failed.
type Func func(context.Context) error

// Task is a task definition; create one with Every or Trigger.
type Task interface {
	kind() taskKind
}

type taskKind int

const (
	kindTrigger taskKind = iota
	kindEvery
)

type triggerTask struct {
	fn Func
}

func (triggerTask) kind() taskKind { return kindTrigger }

// Trigger creates a task that runs only when triggered through its Handle.
func Trigger(fn Func) Task {
	return triggerTask{fn: fn}
}

type everyTask struct {
	interval time.Duration
	fn       Func
}

func (everyTask) kind() taskKind { return kindEvery }

// Every creates a periodic task. Each run is scheduled interval after the
// previous run finished. Without WithStartImmediately the first run happens one
// interval after activation.
//
// interval must be > 0; otherwise Manager.Add panics.
func Every(interval time.Duration, fn Func) Task {
	return everyTask{interval: interval, fn: fn}
}

// Handle is a registered task. Every task can also be triggered.
type Handle interface {
	// Name returns the normalized name ("" if unnamed).
	Name() string

	// TryTrigger starts a run now and reports whether it started.
	TryTrigger() bool

	// TriggerAndWait starts a run and waits for it.
	//
	// It returns ErrNotRunning before Start, ErrClosed during or after Shutdown,
	// ErrSkipped if a run is in progress, ctx.Err() if ctx ends first, and
	// otherwise the run's own error (ErrPanicked if it panicked).
	TriggerAndWait(ctx context.Context) error

	// Status returns a snapshot of the task's status.
	Status() Status
}

// State is the lifecycle state of a task.
type State int

const (
	StateNotStarted State = iota
	StateIdle
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a point-in-time view of one task.
type Status struct {
	Name  string `json:"name"`
	State State  `json:"state"`

	RunCount      uint64 `json:"run_count"`
	SuccessCount  uint64 `json:"success_count"`
	FailCount     uint64 `json:"fail_count"`
	CanceledCount uint64 `json:"canceled_count"`

	LastStarted  time.Time     `json:"last_started"`
	LastFinished time.Time     `json:"last_finished"`
	LastSuccess  time.Time     `json:"last_success"`
	LastDuration time.Duration `json:"last_duration"`
	// LastError is the error of the most recent failed run. It is not cleared by
	// later successes; compare LastSuccess with LastFinished for recency.
	LastError string `json:"last_error,omitempty"`
	// Failing is true when the most recent run that was not canceled failed.
	Failing bool `json:"failing"`

	// NextRun is the next scheduled run of an Every task; zero otherwise.
	NextRun time.Time `json:"next_run"`
}

// Snapshot is a point-in-time view of all tasks of a Manager, in Add order.
type Snapshot struct {
	Tasks []Status `json:"tasks"`
}

// Get finds a task status by name.
func (s Snapshot) Get(name string) (Status, bool) {
	for _, st := range s.Tasks {
		if st.Name == name {
			return st, true
		}
	}
	return Status{}, false
}
