package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func nop(context.Context) error { return nil }

func startManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	m := NewManager(opts...)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStart_AlreadyStarted(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Start err=%v, want ErrAlreadyStarted", err)
	}
}

func TestAdd_NameNormalizeAndLookup(t *testing.T) {
	t.Parallel()

	var m Manager
	h, err := m.Add(Trigger(nop), WithName("  ratelimit-prune.v2_x  "))
	if err != nil {
		t.Fatalf("Add err=%v", err)
	}
	if got := h.Name(); got != "ratelimit-prune.v2_x" {
		t.Fatalf("Name=%q", got)
	}
	if got, ok := m.Lookup(" ratelimit-prune.v2_x "); !ok || got != h {
		t.Fatalf("Lookup ok=%v got=%v, want h", ok, got)
	}
	if _, ok := m.Lookup(""); ok {
		t.Fatal("Lookup(\"\") ok=true, want false")
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) ok=true, want false")
	}
}

func TestAdd_InvalidAndDuplicateNames(t *testing.T) {
	t.Parallel()

	m := NewManager()
	for _, name := range []string{"a/b", "a b", "ключ"} {
		if _, err := m.Add(Trigger(nop), WithName(name)); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Add(%q) err=%v, want ErrInvalidName", name, err)
		}
	}
	m.MustAdd(Trigger(nop), WithName("x"))
	if _, err := m.Add(Trigger(nop), WithName(" x ")); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Add dup err=%v, want ErrDuplicateName", err)
	}
}

func TestAdd_InvalidDefinitionsPanic(t *testing.T) {
	t.Parallel()

	m := NewManager()
	for name, tk := range map[string]Task{
		"nil func":      Trigger(nil),
		"zero interval": Every(0, nop),
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", name)
				}
			}()
			_, _ = m.Add(tk)
		}()
	}
}

func TestTrigger_Lifecycle(t *testing.T) {
	t.Parallel()

	m := NewManager()
	h := m.MustAdd(Trigger(nop), WithName("job"))

	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("before Start err=%v, want ErrNotRunning", err)
	}
	if h.TryTrigger() {
		t.Fatal("TryTrigger before Start = true")
	}
	if st := h.Status(); st.State != StateNotStarted {
		t.Fatalf("State=%s, want not-started", st.State)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if err := h.TriggerAndWait(context.Background()); err != nil {
		t.Fatalf("TriggerAndWait err=%v", err)
	}
	st := h.Status()
	if st.State != StateIdle || st.RunCount != 1 || st.SuccessCount != 1 || st.LastSuccess.IsZero() {
		t.Fatalf("status=%+v", st)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown err=%v", err)
	}
	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("after Shutdown err=%v, want ErrClosed", err)
	}
	if _, err := m.Add(Trigger(nop)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Add after Shutdown err=%v, want ErrClosed", err)
	}
	if st := h.Status(); st.State != StateStopped {
		t.Fatalf("State=%s, want stopped", st.State)
	}
}

func TestShutdownWithoutStart_MarksStopped(t *testing.T) {
	t.Parallel()

	m := NewManager()
	h := m.MustAdd(Every(time.Hour, nop))
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown err=%v", err)
	}
	if st := h.Status(); st.State != StateStopped {
		t.Fatalf("State=%s, want stopped", st.State)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Start after Shutdown err=%v, want ErrAlreadyStarted", err)
	}
}

func TestRun_ErrorIsRecordedAndLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	m := startManager(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	errBoom := errors.New("boom")
	fail := true
	h := m.MustAdd(Trigger(func(context.Context) error {
		if fail {
			return errBoom
		}
		return nil
	}), WithName("flaky"))

	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("err=%v, want errBoom", err)
	}
	st := h.Status()
	if st.FailCount != 1 || st.LastError != "boom" || !st.Failing {
		t.Fatalf("status=%+v", st)
	}
	if !strings.Contains(logs.String(), "task: run failed") || !strings.Contains(logs.String(), "task=flaky") {
		t.Fatalf("logs=%q", logs.String())
	}

	fail = false
	if err := h.TriggerAndWait(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	st = h.Status()
	if st.Failing || st.LastError != "boom" || st.SuccessCount != 1 {
		t.Fatalf("status=%+v, want recovered with last error kept", st)
	}
}

func TestRun_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	m := startManager(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	h := m.MustAdd(Trigger(func(context.Context) error { panic("bad prune") }))

	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, ErrPanicked) {
		t.Fatalf("err=%v, want ErrPanicked", err)
	}
	if st := h.Status(); st.FailCount != 1 || st.State != StateIdle || !st.Failing {
		t.Fatalf("status=%+v", st)
	}
	if !strings.Contains(logs.String(), "task: run panicked") || !strings.Contains(logs.String(), "bad prune") {
		t.Fatalf("logs=%q", logs.String())
	}
	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, ErrPanicked) {
		t.Fatalf("second run err=%v, want ErrPanicked", err)
	}
}

func TestRun_NeverOverlaps(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h := m.MustAdd(Trigger(func(context.Context) error {
		close(entered)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- h.TriggerAndWait(context.Background()) }()
	<-entered

	if h.TryTrigger() {
		t.Fatal("TryTrigger while running = true")
	}
	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, ErrSkipped) {
		t.Fatalf("err=%v, want ErrSkipped", err)
	}
	if st := h.Status(); st.State != StateRunning || st.RunCount != 1 {
		t.Fatalf("status=%+v", st)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run err=%v", err)
	}
}

func TestTriggerAndWait_ContextEnds(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h := m.MustAdd(Trigger(func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := h.TriggerAndWait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want DeadlineExceeded", err)
	}
}

func TestEvery_RunsRepeatedly(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	var mu sync.Mutex
	runs := 0
	h := m.MustAdd(Every(5*time.Millisecond, func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}), WithStartImmediately(true), WithName("tick"))

	waitFor(t, "three runs", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 3
	})
	if st, ok := m.Snapshot().Get("tick"); !ok || st.SuccessCount < 3 {
		t.Fatalf("snapshot ok=%v status=%+v", ok, st)
	}
	waitFor(t, "next run", func() bool { return !h.Status().NextRun.IsZero() })
}

func TestEvery_AddedAfterStart(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	ran := make(chan struct{}, 1)
	m.MustAdd(Every(time.Millisecond, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task added after Start never ran")
	}
}

func TestShutdown_CancelsRunningTask(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	m := NewManager(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	entered := make(chan struct{})
	h := m.MustAdd(Trigger(func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if !h.TryTrigger() {
		t.Fatal("TryTrigger = false")
	}
	<-entered

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown err=%v", err)
	}
	st := h.Status()
	if st.CanceledCount != 1 || st.FailCount != 0 || st.State != StateStopped {
		t.Fatalf("status=%+v", st)
	}
	if logs.Len() != 0 {
		t.Fatalf("canceled run was logged: %q", logs.String())
	}
}

func TestShutdown_TimeoutThenRetry(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h := m.MustAdd(Trigger(func(context.Context) error {
		close(entered)
		<-release
		return nil
	}))
	h.TryTrigger()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown err=%v, want DeadlineExceeded", err)
	}
	close(release)
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown err=%v", err)
	}
	m.Wait()
	if st := h.Status(); st.State != StateStopped || st.SuccessCount != 1 {
		t.Fatalf("status=%+v", st)
	}
}

func TestWithTimeout_FailsSlowRun(t *testing.T) {
	t.Parallel()

	m := startManager(t)
	h := m.MustAdd(Trigger(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), WithTimeout(5*time.Millisecond))

	if err := h.TriggerAndWait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want DeadlineExceeded", err)
	}
	if st := h.Status(); st.FailCount != 1 || st.CanceledCount != 0 {
		t.Fatalf("status=%+v, want a failure, not a cancel", st)
	}
}

func TestStatus_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Status{Name: "job", State: StateIdle})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"state":"idle"`) {
		t.Fatalf("json=%s", b)
	}
	if got := State(42).String(); got != "State(42)" {
		t.Fatalf("String=%q", got)
	}
}
