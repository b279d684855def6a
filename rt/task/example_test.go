package task_test

import (
	"context"
	"fmt"

	"github.com/evan-idocoding/zsync/rt/task"
)

func ExampleManager_triggerAndWait() {
	m := task.NewManager()
	h := m.MustAdd(task.Trigger(func(context.Context) error {
		fmt.Println("pruned")
		return nil
	}), task.WithName("prune"))

	_ = m.Start(context.Background())
	defer m.Shutdown(context.Background())

	_ = h.TriggerAndWait(context.Background())

	// Output:
	// pruned
}

func ExampleManager_Snapshot() {
	m := task.NewManager()
	h := m.MustAdd(task.Trigger(func(context.Context) error { return nil }), task.WithName("job"))

	_ = m.Start(context.Background())
	defer m.Shutdown(context.Background())

	_ = h.TriggerAndWait(context.Background())

	st, ok := m.Snapshot().Get("job")
	fmt.Println(ok, st.State, st.RunCount, st.SuccessCount, st.FailCount)

	// Output:
	// true idle 1 1 0
}
