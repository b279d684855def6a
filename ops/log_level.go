package ops

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

type logLevelConfig struct {
	format Format
}

// LogLevelOption configures LogLevelHandler.
type LogLevelOption func(*logLevelConfig)

// WithLogLevelDefaultFormat sets the default response format.
// ?format=json|text overrides it per request. Default is FormatText.
func WithLogLevelDefaultFormat(f Format) LogLevelOption {
	return func(c *logLevelConfig) { c.format = f }
}

// LogLevelSnapshot is the level of a slog.LevelVar at one moment.
type LogLevelSnapshot struct {
	// Level is the lower-cased slog name, e.g. "info" or "debug+2".
	Level      string `json:"level"`
	LevelValue int    `json:"level_value"`
}

// LogLevel returns a snapshot of lv.
func LogLevel(lv *slog.LevelVar) LogLevelSnapshot {
	l := lv.Level()
	return LogLevelSnapshot{Level: strings.ToLower(l.String()), LevelValue: int(l)}
}

type logLevelReply struct {
	OK       bool              `json:"ok"`
	Level    LogLevelSnapshot  `json:"level"`
	Previous *LogLevelSnapshot `json:"previous,omitempty"`
}

func (rp logLevelReply) text() string {
	var b strings.Builder
	b.WriteString("level=")
	b.WriteString(rp.Level.Level)
	b.WriteString(" value=")
	b.WriteString(strconv.Itoa(rp.Level.LevelValue))
	if rp.Previous != nil {
		b.WriteString(" previous=")
		b.WriteString(rp.Previous.Level)
	}
	b.WriteByte('\n')
	return b.String()
}

// LogLevelHandler returns a handler reading and changing lv.
//
//   - GET/HEAD: report the current level.
//   - POST ?level=<name>: set the level and report the new and previous ones.
//     Names are those of slog.Level.UnmarshalText, case-insensitive: debug,
//     info, warn, error, optionally with an offset such as "info+2".
//
// Other methods return 405; a missing or unknown level returns 400.
func LogLevelHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := logLevelConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.format != FormatText && cfg.format != FormatJSON {
		cfg.format = FormatText
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			panic("ops: nil request")
		}
		format := formatFromRequest(r, cfg.format)
		var rp logLevelReply
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			rp = logLevelReply{OK: true, Level: LogLevel(lv)}
		case http.MethodPost:
			var l slog.Level
			if err := l.UnmarshalText([]byte(strings.TrimSpace(r.URL.Query().Get("level")))); err != nil {
				writeError(w, r, format, http.StatusBadRequest, "invalid level (want debug, info, warn or error)")
				return
			}
			prev := LogLevel(lv)
			lv.Set(l)
			rp = logLevelReply{OK: true, Level: LogLevel(lv), Previous: &prev}
		default:
			methodNotAllowed(w, r, format, "GET, HEAD, POST")
			return
		}
		writeReply(w, r, format, reply{code: http.StatusOK, body: rp, text: rp.text})
	})
}
