package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

func noop(context.Context) error { return nil }

func failAlways(context.Context) error { return errors.New("boom") }

func task(id string, deps ...string) *Task {
	return &Task{ID: id, Name: id, Dependencies: deps, Priority: types.PriorityMedium, Run: noop}
}

func newTestEngine() (*Engine, storage.Store) {
	store := storage.NewMemoryStore()
	return NewEngine(store, nil, 4), store
}

func taskStates(t *testing.T, store storage.Store, execID string) map[string]types.TaskState {
	t.Helper()
	recs, err := store.ListTaskRecords(execID)
	require.NoError(t, err)
	states := make(map[string]types.TaskState)
	for _, r := range recs {
		states[r.TaskID] = r.State
	}
	return states
}

func TestRegisterWorkflow_Validation(t *testing.T) {
	e, _ := newTestEngine()

	tests := []struct {
		name  string
		tasks []*Task
	}{
		{"duplicate ids", []*Task{task("a"), task("a")}},
		{"unknown dependency", []*Task{task("a", "nope")}},
		{"self cycle", []*Task{task("a", "a")}},
		{"two-node cycle", []*Task{task("a", "b"), task("b", "a")}},
		{"empty id", []*Task{{Name: "x", Run: noop}}},
		{"nil function", []*Task{{ID: "a", Name: "a"}}},
		{"no tasks", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, e.RegisterWorkflow("wf", tt.tasks))
		})
	}
}

func TestRegisterWorkflow_EmptyStringDependencyDropped(t *testing.T) {
	e, _ := newTestEngine()
	a := task("a")
	b := &Task{ID: "b", Name: "b", Dependencies: []string{"", "a", ""}, Priority: types.PriorityMedium, Run: noop}

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{a, b}))
	assert.Equal(t, []string{"a"}, b.Dependencies)
}

func TestExecute_RunsInDependencyOrder(t *testing.T) {
	e, _ := newTestEngine()

	var mu sync.Mutex
	var order []string
	record := func(id string) TaskFunc {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "a", Name: "a", Run: record("a")},
		{ID: "b", Name: "b", Dependencies: []string{"a"}, Run: record("b")},
		{ID: "c", Name: "c", Dependencies: []string{"b"}, Run: record("c")},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionSuccess, exec.Status)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 3, exec.CompletedTasks)
	assert.Equal(t, 0, exec.FailedTasks)
}

func TestExecute_PriorityOrderWithinReadySet(t *testing.T) {
	store := storage.NewMemoryStore()
	e := NewEngine(store, nil, 1) // serialize so queue order is observable

	var mu sync.Mutex
	var order []string
	record := func(id string) TaskFunc {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	// All roots; with concurrency 1 the heap decides the order.
	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "low", Name: "low", Priority: types.PriorityLow, Run: record("low")},
		{ID: "critical", Name: "critical", Priority: types.PriorityCritical, Run: record("critical")},
		{ID: "medium-1", Name: "medium-1", Priority: types.PriorityMedium, Run: record("medium-1")},
		{ID: "medium-2", Name: "medium-2", Priority: types.PriorityMedium, Run: record("medium-2")},
		{ID: "high", Name: "high", Priority: types.PriorityHigh, Run: record("high")},
	}))

	_, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	// The first task may start before lower-priority peers are enqueued,
	// but from the second slot on the heap ordering holds; medium FIFO.
	assert.Contains(t, order, "critical")
	idx := func(id string) int {
		for i, v := range order {
			if v == id {
				return i
			}
		}
		return -1
	}
	assert.Less(t, idx("high"), idx("medium-1"))
	assert.Less(t, idx("medium-1"), idx("medium-2"))
	assert.Less(t, idx("medium-2"), idx("low"))
}

func TestExecute_SkipOnFailurePropagatesSkipped(t *testing.T) {
	e, store := newTestEngine()

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "t1", Name: "t1", Run: noop},
		{ID: "t2", Name: "t2", Dependencies: []string{"t1"}, Priority: types.PriorityMedium, SkipOnFailure: true, Run: failAlways},
		{ID: "t3", Name: "t3", Dependencies: []string{"t2"}, Run: noop},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	states := taskStates(t, store, exec.ID)
	assert.Equal(t, types.TaskSuccess, states["t1"])
	assert.Equal(t, types.TaskFailed, states["t2"])
	assert.Equal(t, types.TaskSkipped, states["t3"])
	assert.Equal(t, types.ExecutionSuccess, exec.Status)
}

func TestExecute_SkippedDependencySatisfiesSiblings(t *testing.T) {
	e, store := newTestEngine()

	// d depends on both the skipped subtree and a healthy branch; the
	// transitive rule marks it SKIPPED rather than leaving it stuck.
	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "a", Name: "a", Run: noop},
		{ID: "b", Name: "b", Dependencies: []string{"a"}, SkipOnFailure: true, Run: failAlways},
		{ID: "c", Name: "c", Dependencies: []string{"a"}, Run: noop},
		{ID: "d", Name: "d", Dependencies: []string{"b", "c"}, Run: noop},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	states := taskStates(t, store, exec.ID)
	assert.Equal(t, types.TaskSuccess, states["c"])
	assert.Equal(t, types.TaskSkipped, states["d"])
	assert.Equal(t, types.ExecutionSuccess, exec.Status)
}

func TestExecute_CriticalFailureAborts(t *testing.T) {
	e, store := newTestEngine()

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "a", Name: "a", Priority: types.PriorityCritical, Run: failAlways},
		{ID: "b", Name: "b", Dependencies: []string{"a"}, Run: noop},
		{ID: "c", Name: "c", Dependencies: []string{"a"}, Run: noop},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	states := taskStates(t, store, exec.ID)
	assert.Equal(t, types.TaskFailed, states["a"])
	assert.Equal(t, types.TaskCancelled, states["b"])
	assert.Equal(t, types.TaskCancelled, states["c"])
	assert.Equal(t, types.ExecutionFailed, exec.Status)
	assert.Equal(t, 1, exec.FailedTasks)
	assert.Equal(t, 0, exec.CompletedTasks)
}

func TestExecute_RetriesBeforeFailing(t *testing.T) {
	e, _ := newTestEngine()

	var attempts atomic.Int32
	flaky := func(context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "a", Name: "a", RetryCount: 2, Run: flaky},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionSuccess, exec.Status)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestExecute_TimeoutMarksTaskTimeout(t *testing.T) {
	e, store := newTestEngine()

	slow := func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "slow", Name: "slow", Timeout: 50 * time.Millisecond, Run: slow},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	states := taskStates(t, store, exec.ID)
	assert.Equal(t, types.TaskTimeout, states["slow"])
	assert.Equal(t, types.ExecutionFailed, exec.Status)
}

func TestExecute_PlainFailureCancelsBlockedDependents(t *testing.T) {
	e, store := newTestEngine()

	require.NoError(t, e.RegisterWorkflow("wf", []*Task{
		{ID: "a", Name: "a", Run: failAlways},
		{ID: "b", Name: "b", Dependencies: []string{"a"}, Run: noop},
	}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	states := taskStates(t, store, exec.ID)
	assert.Equal(t, types.TaskFailed, states["a"])
	assert.Equal(t, types.TaskCancelled, states["b"])
	assert.Equal(t, types.ExecutionFailed, exec.Status)
}

func TestExecute_UnknownWorkflow(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.Execute(context.Background(), "nope")
	assert.Error(t, err)
}

func TestStatus_ReturnsPersistedExecution(t *testing.T) {
	e, _ := newTestEngine()
	require.NoError(t, e.RegisterWorkflow("wf", []*Task{task("a")}))

	exec, err := e.Execute(context.Background(), "wf")
	require.NoError(t, err)

	got, err := e.Status(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionSuccess, got.Status)
	assert.Equal(t, 1, got.TotalTasks)
}
