package task

import "errors"

var (
	// ErrAlreadyStarted is returned by Start when called more than once.
	ErrAlreadyStarted = errors.New("task: manager already started")
	// ErrClosed is returned once the manager is shutting down or stopped.
	ErrClosed = errors.New("task: manager closed")
	// ErrNotRunning is returned when a run is requested before Start.
	ErrNotRunning = errors.New("task: manager not running")
	// ErrSkipped is returned when a run is requested while the task is running.
	ErrSkipped = errors.New("task: run skipped, already running")
	// ErrPanicked is the recorded outcome of a run that panicked.
	ErrPanicked = errors.New("task: run panicked")

	// ErrInvalidName is returned by Add for names outside [A-Za-z0-9._-].
	ErrInvalidName = errors.New("task: invalid name")
	// ErrDuplicateName is returned by Add when a non-empty name is already registered.
	ErrDuplicateName = errors.New("task: duplicate name")
)
