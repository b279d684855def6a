package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evan-idocoding/zsync/rt/task"
)

type healthConfig struct {
	format Format
}

// HealthOption configures HealthzHandler and ReadyzHandler.
type HealthOption func(*healthConfig)

// WithHealthDefaultFormat sets the default response format for health handlers.
// ?format=json|text overrides it per request. Default is FormatText.
func WithHealthDefaultFormat(f Format) HealthOption {
	return func(c *healthConfig) { c.format = f }
}

func applyHealthOptions(opts []HealthOption) healthConfig {
	cfg := healthConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.format != FormatText && cfg.format != FormatJSON {
		cfg.format = FormatText
	}
	return cfg
}

type healthReply struct {
	OK bool `json:"ok"`
}

// HealthzHandler returns a liveness handler. It has no dependencies and always
// answers 200 "ok" to GET/HEAD.
func HealthzHandler(opts ...HealthOption) http.Handler {
	cfg := applyHealthOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			panic("ops: nil request")
		}
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		writeReply(w, r, format, reply{
			code: http.StatusOK,
			body: healthReply{OK: true},
			text: func() string { return "ok\n" },
		})
	})
}

// ReadyCheckFunc returns nil when the dependency it checks is usable. It should
// be fast and honor ctx.
type ReadyCheckFunc func(context.Context) error

// ReadyCheck is a named readiness check.
type ReadyCheck struct {
	Name    string
	Func    ReadyCheckFunc
	Timeout time.Duration // <= 0: no per-check timeout
}

// ReadyCheckResult is the outcome of one check.
type ReadyCheckResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration"` // nanoseconds in JSON
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// ReadyzReport is the outcome of a readiness run.
type ReadyzReport struct {
	OK       bool               `json:"ok"`
	Duration time.Duration      `json:"duration"` // nanoseconds in JSON
	Checks   []ReadyCheckResult `json:"checks,omitempty"`
}

func (rep ReadyzReport) text() string {
	if rep.OK {
		return "ok\n"
	}
	var b strings.Builder
	for _, c := range rep.Checks {
		if c.OK {
			continue
		}
		b.WriteString("fail ")
		b.WriteString(c.Name)
		if c.Error != "" {
			b.WriteString(": ")
			b.WriteString(c.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ReadyzHandler returns a readiness handler running checks in order on every
// request: 200 if all pass, 503 otherwise. GET/HEAD only.
//
// It panics on a check with an empty Name or nil Func.
func ReadyzHandler(checks []ReadyCheck, opts ...HealthOption) http.Handler {
	for i, c := range checks {
		if c.Name == "" {
			panic(fmt.Sprintf("ops: ready check[%d] has empty Name", i))
		}
		if c.Func == nil {
			panic(fmt.Sprintf("ops: ready check[%d] %q has nil Func", i, c.Name))
		}
	}
	cfg := applyHealthOptions(opts)
	checks = append([]ReadyCheck(nil), checks...)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			panic("ops: nil request")
		}
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		rep := RunReadyzChecks(r.Context(), checks)
		code := http.StatusOK
		if !rep.OK {
			code = http.StatusServiceUnavailable
		}
		writeReply(w, r, format, reply{code: code, body: rep, text: rep.text})
	})
}

// RunReadyzChecks runs checks in order and reports all of them.
func RunReadyzChecks(ctx context.Context, checks []ReadyCheck) ReadyzReport {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	rep := ReadyzReport{OK: true, Checks: make([]ReadyCheckResult, 0, len(checks))}
	for _, c := range checks {
		res := runReadyCheck(ctx, c)
		rep.OK = rep.OK && res.OK
		rep.Checks = append(rep.Checks, res)
	}
	rep.Duration = time.Since(start)
	return rep
}

func runReadyCheck(parent context.Context, c ReadyCheck) (res ReadyCheckResult) {
	res.Name = c.Name
	ctx := parent
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.Timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if p := recover(); p != nil {
			res.OK, res.Error = false, fmt.Sprintf("panic: %v", p)
		}
		if ctx.Err() == context.DeadlineExceeded {
			res.OK, res.TimedOut = false, true
			if res.Error == "" {
				res.Error = "timeout"
			}
		}
	}()
	if err := c.Func(ctx); err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

// LimiterReadyCheck fails while src holds poisoned keys, i.e. until the next
// prune removes them.
func LimiterReadyCheck(name string, src StatsSource) ReadyCheck {
	if src == nil {
		panic("ops: nil limiter stats source")
	}
	return ReadyCheck{
		Name: "limiter." + name,
		Func: func(context.Context) error {
			if n := src.Stats().Poisoned; n > 0 {
				return fmt.Errorf("%d poisoned keys", n)
			}
			return nil
		},
	}
}

// TaskReadyCheck fails while the task's latest run failed, or once the task has
// stopped.
func TaskReadyCheck(h task.Handle) ReadyCheck {
	if h == nil {
		panic("ops: nil task handle")
	}
	name := h.Name()
	if name == "" {
		name = "unnamed"
	}
	return ReadyCheck{
		Name: "task." + name,
		Func: func(context.Context) error {
			st := h.Status()
			switch {
			case st.State == task.StateStopped:
				return errors.New("stopped")
			case st.Failing:
				return fmt.Errorf("last run failed: %s", st.LastError)
			}
			return nil
		},
	}
}
