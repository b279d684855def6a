package ops

import (
	"encoding/json"
	"net/http"
)

// reply is one ops response with both renderings. text is called only for
// FormatText; body is marshaled only for FormatJSON.
type reply struct {
	code     int
	body     any
	text     func() string
	maxBytes int // <= 0: unlimited
}

// writeReply renders rp in format f. Bodies larger than rp.maxBytes become a 413
// with a short error in the same format. HEAD gets the status and headers of the
// equivalent GET without a body.
func writeReply(w http.ResponseWriter, r *http.Request, f Format, rp reply) {
	h := w.Header()
	h.Set("Cache-Control", "no-store")

	status := rp.code
	var body []byte
	if f == FormatJSON {
		h.Set("Content-Type", "application/json; charset=utf-8")
		b, err := json.Marshal(rp.body)
		if err != nil {
			status = http.StatusInternalServerError
			b = []byte(`{"ok":false,"error":"internal error"}`)
		}
		body = append(b, '\n')
	} else {
		h.Set("Content-Type", "text/plain; charset=utf-8")
		body = []byte(rp.text())
	}

	if rp.maxBytes > 0 && len(body) > rp.maxBytes {
		status = http.StatusRequestEntityTooLarge
		if f == FormatJSON {
			body = []byte(`{"ok":false,"error":"response too large"}` + "\n")
		} else {
			body = []byte("response too large\n")
		}
	}

	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// errorReply is the shape shared by every handler's failure responses.
type errorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, f Format, code int, msg string) {
	writeReply(w, r, f, reply{
		code: code,
		body: errorReply{Error: msg},
		text: func() string { return "error: " + msg + "\n" },
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, f Format, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, r, f, http.StatusMethodNotAllowed, "method not allowed")
}
