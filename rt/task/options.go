package task

import (
	"log/slog"
	"time"
)

type taskConfig struct {
	name             string
	startImmediately bool
	timeout          time.Duration
}

// Option configures a task at Add time.
type Option func(*taskConfig)

// WithName names the task. Names are trimmed, must match [A-Za-z0-9._-], and are
// unique within a Manager. Unnamed tasks cannot be looked up.
func WithName(name string) Option {
	return func(c *taskConfig) { c.name = name }
}

// WithStartImmediately makes an Every task run as soon as it is activated
// instead of one interval later. Default is false.
func WithStartImmediately(v bool) Option {
	return func(c *taskConfig) { c.startImmediately = v }
}

// WithTimeout bounds every run of the task. <= 0 means no timeout (default).
func WithTimeout(d time.Duration) Option {
	return func(c *taskConfig) { c.timeout = d }
}

type managerConfig struct {
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// WithLogger sets the logger for run failures and panics. Default discards.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
