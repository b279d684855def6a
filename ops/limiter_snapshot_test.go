package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evan-idocoding/zsync/rt/ratelimit"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestKeyed(t *testing.T) *ratelimit.Keyed[string] {
	t.Helper()
	g, err := ratelimit.NewGCRA(1, time.Second, 1)
	if err != nil {
		t.Fatal(err)
	}
	return ratelimit.NewKeyed[string](g, ratelimit.WithClock(func() time.Time { return testNow }))
}

type entriesFunc func() []ratelimit.Entry

func (f entriesFunc) Entries() []ratelimit.Entry { return f() }

func TestLimiterSnapshot_Text_OK_Sorted(t *testing.T) {
	l := newTestKeyed(t)
	_ = l.Check("b")
	_ = l.Check("a")

	h := LimiterSnapshotHandler(l)
	r := httptest.NewRequest(http.MethodGet, "http://example/limiter", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want=%d", w.Result().StatusCode, http.StatusOK)
	}
	if ct := w.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type=%q, want text/plain", ct)
	}
	if cc := w.Result().Header.Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("Cache-Control=%q, want %q", cc, "no-store")
	}
	want := "ok (advisory) keys=2\n" +
		"key=\"a\" tat=2024-01-01T00:00:01Z throttled=true\n" +
		"key=\"b\" tat=2024-01-01T00:00:01Z throttled=true\n"
	if got := w.Body.String(); got != want {
		t.Fatalf("body=%q, want %q", got, want)
	}
}

func TestLimiterSnapshot_JSON_OK(t *testing.T) {
	l := newTestKeyed(t)
	_ = l.Check("k")

	h := LimiterSnapshotHandler(l, WithLimiterSnapshotDefaultFormat(FormatJSON))
	r := httptest.NewRequest(http.MethodGet, "http://example/limiter", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want=%d", w.Result().StatusCode, http.StatusOK)
	}
	if ct := w.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type=%q, want application/json", ct)
	}
	var got limiterSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.OK || !got.Advisory || got.Keys != 1 || len(got.Entries) != 1 {
		t.Fatalf("got=%+v, want ok advisory with 1 entry", got)
	}
	if got.Generation == nil || *got.Generation != 1 {
		t.Fatalf("generation=%v, want 1", got.Generation)
	}
	if e := got.Entries[0]; e.Key != "k" || !e.TAT.Equal(testNow.Add(time.Second)) || !e.Throttled {
		t.Fatalf("entry=%+v", e)
	}
}

func TestLimiterSnapshot_GenerationHeader(t *testing.T) {
	l := newTestKeyed(t)
	_ = l.Check("a")
	_ = l.Check("b")

	w := httptest.NewRecorder()
	LimiterSnapshotHandler(l).ServeHTTP(w, httptest.NewRequest(http.MethodHead, "http://example/limiter", nil))
	if got := w.Result().Header.Get(GenerationHeader); got != "2" {
		t.Fatalf("%s=%q, want %q", GenerationHeader, got, "2")
	}

	// Sources without statistics report no generation.
	src := entriesFunc(func() []ratelimit.Entry { return nil })
	w = httptest.NewRecorder()
	LimiterSnapshotHandler(src).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/limiter?format=json", nil))
	if got := w.Result().Header.Get(GenerationHeader); got != "" {
		t.Fatalf("%s=%q, want empty", GenerationHeader, got)
	}
	if strings.Contains(w.Body.String(), "generation") {
		t.Fatalf("body=%q, want no generation", w.Body.String())
	}
}

func TestLimiterSnapshot_PoisonedEntries(t *testing.T) {
	src := entriesFunc(func() []ratelimit.Entry {
		return []ratelimit.Entry{
			{Key: "a", TAT: testNow, Throttled: false},
			{Key: "b", Poisoned: true},
		}
	})
	w := httptest.NewRecorder()
	LimiterSnapshotHandler(src).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/limiter", nil))

	want := "ok (advisory) keys=2 poisoned=1\n" +
		"key=\"a\" tat=2024-01-01T00:00:00Z throttled=false\n" +
		"key=\"b\" tat=- throttled=false poisoned=true\n"
	if got := w.Body.String(); got != want {
		t.Fatalf("body=%q, want %q", got, want)
	}
}

func TestLimiterSnapshot_QueryFormatOverridesOption(t *testing.T) {
	h := LimiterSnapshotHandler(newTestKeyed(t), WithLimiterSnapshotDefaultFormat(FormatJSON))
	r := httptest.NewRequest(http.MethodGet, "http://example/limiter?format=text", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Body.String(); got != "ok (advisory) keys=0\n" {
		t.Fatalf("body=%q", got)
	}
}

func TestLimiterSnapshot_MethodNotAllowed(t *testing.T) {
	h := LimiterSnapshotHandler(newTestKeyed(t))
	r := httptest.NewRequest(http.MethodPost, "http://example/limiter", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want=%d", w.Result().StatusCode, http.StatusMethodNotAllowed)
	}
	if allow := w.Result().Header.Get("Allow"); allow != "GET, HEAD" {
		t.Fatalf("Allow=%q", allow)
	}
	if got := w.Body.String(); got != "error: method not allowed\n" {
		t.Fatalf("body=%q", got)
	}
}

func TestLimiterSnapshot_Head(t *testing.T) {
	h := LimiterSnapshotHandler(newTestKeyed(t))
	r := httptest.NewRequest(http.MethodHead, "http://example/limiter", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status=%d", w.Result().StatusCode)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("HEAD body=%q, want empty", w.Body.String())
	}
}

func TestLimiterSnapshot_SourcePanicIsContained(t *testing.T) {
	h := LimiterSnapshotHandler(entriesFunc(func() []ratelimit.Entry { panic("cell: poisoned") }))
	r := httptest.NewRequest(http.MethodGet, "http://example/limiter", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d, want=%d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	if got := w.Body.String(); got != "error: panic: cell: poisoned\n" {
		t.Fatalf("body=%q", got)
	}
}

func TestLimiterSnapshot_MaxBytes(t *testing.T) {
	l := newTestKeyed(t)
	for _, k := range []string{"a", "b", "c"} {
		_ = l.Check(k)
	}
	h := LimiterSnapshotHandler(l, WithLimiterSnapshotMaxBytes(32))

	r := httptest.NewRequest(http.MethodGet, "http://example/limiter", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Result().StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want=%d", w.Result().StatusCode, http.StatusRequestEntityTooLarge)
	}

	r = httptest.NewRequest(http.MethodGet, "http://example/limiter?format=json", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Result().StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("json status=%d, want=%d", w.Result().StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestLimiterSnapshot_NilSourcePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	LimiterSnapshotHandler(nil)
}
