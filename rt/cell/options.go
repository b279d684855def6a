package cell

type config struct {
	reentrancyCheck bool
}

// Option configures a Cell at construction time.
type Option func(*config)

// WithReentrancyCheck enables best-effort detection of re-entrant acquisition.
//
// Without it, a decision function that calls back into its own cell deadlocks.
// With it, the nested acquisition panics with ErrReentrant instead. Detection
// records the holder's goroutine id on every acquisition, which costs a stack
// read per call; enable it in tests and debugging builds, not on hot paths.
func WithReentrancyCheck() Option {
	return func(c *config) { c.reentrancyCheck = true }
}

func applyOptions(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
