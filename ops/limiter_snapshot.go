package ops

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evan-idocoding/zsync/rt/ratelimit"
)

// GenerationHeader carries the key-set generation the snapshot was taken at,
// when the source reports statistics.
const GenerationHeader = "X-Zsync-Limiter-Generation"

// EntrySource provides per-key limiter entries. *ratelimit.Keyed implements it.
//
// If the source also implements StatsSource, the handler reports the key-set
// generation and the poisoned-key count as well.
type EntrySource interface {
	Entries() []ratelimit.Entry
}

type limiterSnapshotConfig struct {
	format   Format
	maxBytes int
}

// LimiterSnapshotOption configures LimiterSnapshotHandler.
type LimiterSnapshotOption func(*limiterSnapshotConfig)

// WithLimiterSnapshotDefaultFormat sets the default response format.
// ?format=json|text overrides it per request. Default is FormatText.
func WithLimiterSnapshotDefaultFormat(f Format) LimiterSnapshotOption {
	return func(c *limiterSnapshotConfig) { c.format = f }
}

// WithLimiterSnapshotMaxBytes caps the rendered body. Larger responses get HTTP 413.
//
// <= 0 means "no limit". Default is 4 MiB.
func WithLimiterSnapshotMaxBytes(n int) LimiterSnapshotOption {
	return func(c *limiterSnapshotConfig) { c.maxBytes = n }
}

func applyLimiterSnapshotOptions(opts []LimiterSnapshotOption) limiterSnapshotConfig {
	cfg := limiterSnapshotConfig{
		format:   FormatText,
		maxBytes: 4 << 20,
	}
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

// LimiterSnapshotHandler returns a read-only handler listing the per-key state of
// a keyed limiter.
//
// The output is a point-in-time, advisory view: each key is observed under its
// own lock, one after the other, and may have changed by the time it is rendered.
// Poisoned keys are listed with poisoned=true and no TAT.
//
// Behavior:
//   - GET/HEAD only; other methods return 405.
//   - Keys are sorted; text output is one line per key.
//   - If reading the source panics, it responds 500 with the panic message
//     instead of crashing the server.
func LimiterSnapshotHandler(src EntrySource, opts ...LimiterSnapshotOption) http.Handler {
	if src == nil {
		panic("ops: nil limiter entry source")
	}
	cfg := applyLimiterSnapshotOptions(opts)
	stats, _ := src.(StatsSource)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			panic("ops: nil request")
		}
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}

		snap, perr := readLimiter(src, stats)
		if perr != "" {
			writeError(w, r, format, http.StatusInternalServerError, perr)
			return
		}
		if snap.Generation != nil {
			w.Header().Set(GenerationHeader, strconv.FormatUint(*snap.Generation, 10))
		}
		writeReply(w, r, format, reply{
			code:     http.StatusOK,
			body:     snap,
			text:     snap.text,
			maxBytes: cfg.maxBytes,
		})
	})
}

type limiterSnapshot struct {
	OK         bool              `json:"ok"`
	Advisory   bool              `json:"advisory"`
	Keys       int               `json:"keys"`
	Poisoned   int               `json:"poisoned"`
	Generation *uint64           `json:"generation,omitempty"`
	Entries    []ratelimit.Entry `json:"entries,omitempty"`
}

// readLimiter gathers entries (and the generation, if stats is non-nil),
// converting a panic into an error message.
func readLimiter(src EntrySource, stats StatsSource) (snap limiterSnapshot, errMsg string) {
	defer func() {
		if p := recover(); p != nil {
			snap, errMsg = limiterSnapshot{}, fmt.Sprintf("panic: %v", p)
		}
	}()
	if stats != nil {
		gen := stats.Stats().Generation
		snap.Generation = &gen
	}
	snap.Entries = src.Entries()
	snap.OK, snap.Advisory, snap.Keys = true, true, len(snap.Entries)
	for _, e := range snap.Entries {
		if e.Poisoned {
			snap.Poisoned++
		}
	}
	return snap, ""
}

// text renders the header line and one line per key:
//
//	ok (advisory) keys=2 poisoned=1
//	key="a" tat=2024-01-01T00:00:01Z throttled=true
//	key="b" tat=- throttled=false poisoned=true
func (s limiterSnapshot) text() string {
	var b strings.Builder
	b.Grow(32 + 80*len(s.Entries))
	b.WriteString("ok (advisory) keys=")
	b.WriteString(strconv.Itoa(s.Keys))
	if s.Poisoned > 0 {
		b.WriteString(" poisoned=")
		b.WriteString(strconv.Itoa(s.Poisoned))
	}
	b.WriteByte('\n')
	for _, e := range s.Entries {
		b.WriteString("key=")
		b.WriteString(strconv.Quote(e.Key))
		b.WriteString(" tat=")
		if e.TAT.IsZero() {
			b.WriteString("-")
		} else {
			b.WriteString(e.TAT.UTC().Format(time.RFC3339Nano))
		}
		b.WriteString(" throttled=")
		b.WriteString(strconv.FormatBool(e.Throttled))
		if e.Poisoned {
			b.WriteString(" poisoned=true")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
