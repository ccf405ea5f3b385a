package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opentrade/tradefleet/pkg/events"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

// DefaultConcurrency bounds simultaneously running tasks per execution
const DefaultConcurrency = 4

// Engine registers and executes workflows
type Engine struct {
	store       storage.Store
	broker      *events.Broker
	concurrency int

	mu        sync.Mutex
	workflows map[string][]*Task
}

// NewEngine creates a workflow engine
func NewEngine(store storage.Store, broker *events.Broker, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{
		store:       store,
		broker:      broker,
		concurrency: concurrency,
		workflows:   make(map[string][]*Task),
	}
}

// RegisterWorkflow validates and stores a workflow definition. Empty-string
// dependencies mean "no dependency" and are dropped. Duplicate task ids,
// unresolved dependencies, and cycles are rejected.
func (e *Engine) RegisterWorkflow(name string, tasks []*Task) error {
	if name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(tasks) == 0 {
		return fmt.Errorf("workflow %q has no tasks", name)
	}

	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("workflow %q: task with empty id", name)
		}
		if t.Run == nil {
			return fmt.Errorf("workflow %q: task %q has no function", name, t.ID)
		}
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("workflow %q: duplicate task id %q", name, t.ID)
		}
		byID[t.ID] = t
	}

	for _, t := range tasks {
		deps := make([]string, 0, len(t.Dependencies))
		seen := make(map[string]bool)
		for _, d := range t.Dependencies {
			if d == "" || seen[d] {
				continue
			}
			if _, ok := byID[d]; !ok {
				return fmt.Errorf("workflow %q: task %q depends on unknown task %q", name, t.ID, d)
			}
			seen[d] = true
			deps = append(deps, d)
		}
		t.Dependencies = deps
	}

	if err := checkAcyclic(tasks); err != nil {
		return fmt.Errorf("workflow %q: %w", name, err)
	}

	e.mu.Lock()
	e.workflows[name] = tasks
	e.mu.Unlock()
	return nil
}

// checkAcyclic runs Kahn's algorithm over the task graph
func checkAcyclic(tasks []*Task) error {
	indeg := make(map[string]int, len(tasks))
	dependents := make(map[string][]string)
	for _, t := range tasks {
		indeg[t.ID] = len(t.Dependencies)
		for _, d := range t.Dependencies {
			dependents[d] = append(dependents[d], t.ID)
		}
	}

	var queue []string
	for id, n := range indeg {
		if n == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[id] {
			indeg[dep]--
			if indeg[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited != len(tasks) {
		return errors.New("dependency cycle detected")
	}
	return nil
}

// Status returns the persisted snapshot for an execution
func (e *Engine) Status(executionID string) (*types.WorkflowExecution, error) {
	return e.store.GetExecution(executionID)
}

// Execute runs the named workflow to completion and returns the final
// execution record. It blocks; cancel ctx to abort the run.
func (e *Engine) Execute(ctx context.Context, name string) (*types.WorkflowExecution, error) {
	e.mu.Lock()
	tasks, ok := e.workflows[name]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q", name)
	}

	exec := &types.WorkflowExecution{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     types.ExecutionRunning,
		StartedAt:  time.Now().UTC(),
		TotalTasks: len(tasks),
	}
	if err := e.store.CreateExecution(exec); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	logger := log.WithExecutionID(exec.ID).With().Str("workflow", name).Logger()
	logger.Info().Int("tasks", len(tasks)).Msg("workflow execution started")
	e.publish(events.EventWorkflowStarted, exec)
	start := time.Now()

	sched := newScheduler(e, exec, tasks, logger)
	sched.run(ctx)

	exec.CompletedAt = time.Now().UTC()
	exec.Status = sched.finalStatus()
	exec.CompletedTasks = sched.countState(types.TaskSuccess)
	exec.FailedTasks = sched.countState(types.TaskFailed) + sched.countState(types.TaskTimeout)
	if err := e.store.UpdateExecution(exec); err != nil {
		logger.Error().Err(err).Msg("failed to persist execution result")
	}

	metrics.WorkflowDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.WorkflowExecutionsTotal.WithLabelValues(name, string(exec.Status)).Inc()
	if exec.Status == types.ExecutionSuccess {
		e.publish(events.EventWorkflowCompleted, exec)
	} else {
		e.publish(events.EventWorkflowFailed, exec)
	}
	logger.Info().
		Str("status", string(exec.Status)).
		Int("completed", exec.CompletedTasks).
		Int("failed", exec.FailedTasks).
		Msg("workflow execution finished")

	cp := *exec
	return &cp, nil
}

func (e *Engine) publish(t events.EventType, exec *types.WorkflowExecution) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		Type:     t,
		Metadata: map[string]string{"execution_id": exec.ID, "workflow": exec.Name},
	})
}
