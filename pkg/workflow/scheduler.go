package workflow

import (
	"container/heap"
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/types"
)

var retryDelay = backoff.Backoff{
	Min:    500 * time.Millisecond,
	Max:    10 * time.Second,
	Factor: 2,
}

// taskResult is what a worker goroutine reports back to the scheduler
type taskResult struct {
	id       string
	err      error
	timedOut bool
}

// run tracks one task's scheduling state within an execution
type run struct {
	task     *Task
	state    types.TaskState
	attempts int
	waiting  map[string]bool // unmet dependency ids
	lastErr  string
}

// scheduler drives one execution. It is single-threaded: worker goroutines
// only execute task bodies and report through the results channel.
type scheduler struct {
	engine *Engine
	exec   *types.WorkflowExecution
	logger zerolog.Logger

	runs       map[string]*run
	dependents map[string][]string
	queue      readyQueue
	seq        int

	results chan taskResult
	retries chan string
	done    chan struct{}

	running        int
	pendingRetries int
	aborted        bool
}

func newScheduler(e *Engine, exec *types.WorkflowExecution, tasks []*Task, logger zerolog.Logger) *scheduler {
	s := &scheduler{
		engine:     e,
		exec:       exec,
		logger:     logger,
		runs:       make(map[string]*run, len(tasks)),
		dependents: make(map[string][]string),
		results:    make(chan taskResult),
		retries:    make(chan string),
		done:       make(chan struct{}),
	}
	for _, t := range tasks {
		waiting := make(map[string]bool, len(t.Dependencies))
		for _, d := range t.Dependencies {
			waiting[d] = true
			s.dependents[d] = append(s.dependents[d], t.ID)
		}
		s.runs[t.ID] = &run{task: t, state: types.TaskPending, waiting: waiting}
	}
	return s
}

// run executes the workflow to quiescence
func (s *scheduler) run(ctx context.Context) {
	defer close(s.done)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for id, r := range s.runs {
		if len(r.waiting) == 0 {
			s.enqueue(id)
		}
	}

	for {
		for !s.aborted && s.running < s.engine.concurrency && s.queue.Len() > 0 {
			item := heap.Pop(&s.queue).(*queueItem)
			s.launch(execCtx, item.task)
		}

		if s.running == 0 && s.pendingRetries == 0 && (s.aborted || s.queue.Len() == 0) {
			break
		}

		select {
		case res := <-s.results:
			s.running--
			s.handleResult(execCtx, cancel, res)
		case id := <-s.retries:
			s.pendingRetries--
			if !s.aborted {
				s.enqueue(id)
			} else {
				s.terminal(id, types.TaskCancelled, "execution aborted")
			}
		}
	}

	// Whatever is still PENDING is unreachable: blocked behind a hard
	// failure or left over from an abort.
	for id, r := range s.runs {
		if r.state == types.TaskPending || r.state == types.TaskRunning {
			s.terminal(id, types.TaskCancelled, "never became eligible")
		}
	}
}

func (s *scheduler) enqueue(id string) {
	s.seq++
	heap.Push(&s.queue, &queueItem{task: s.runs[id].task, seq: s.seq})
}

func (s *scheduler) launch(ctx context.Context, t *Task) {
	r := s.runs[t.ID]
	r.state = types.TaskRunning
	r.attempts++
	s.record(r)
	s.running++
	s.logger.Debug().Str("task_id", t.ID).Str("priority", t.Priority.String()).Int("attempt", r.attempts).Msg("task started")

	go func() {
		runCtx := ctx
		var cancel context.CancelFunc
		if t.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
			defer cancel()
		}
		err := t.Run(runCtx)
		s.results <- taskResult{
			id:       t.ID,
			err:      err,
			timedOut: errors.Is(err, context.DeadlineExceeded) || runCtx.Err() == context.DeadlineExceeded,
		}
	}()
}

func (s *scheduler) handleResult(ctx context.Context, cancel context.CancelFunc, res taskResult) {
	r := s.runs[res.id]

	if res.err == nil {
		s.terminal(res.id, types.TaskSuccess, "")
		s.satisfyDependents(res.id)
		return
	}

	if s.aborted {
		s.terminal(res.id, types.TaskCancelled, "execution aborted")
		return
	}

	if r.attempts <= r.task.RetryCount {
		// Back to PENDING, re-enqueue after backoff.
		r.state = types.TaskPending
		r.lastErr = res.err.Error()
		s.record(r)
		delay := retryDelay.ForAttempt(float64(r.attempts - 1))
		s.logger.Warn().Str("task_id", res.id).Err(res.err).Dur("backoff", delay).Msg("task failed, retrying")
		s.pendingRetries++
		go func(id string) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			select {
			case s.retries <- id:
			case <-s.done:
			}
		}(res.id)
		return
	}

	state := types.TaskFailed
	if res.timedOut {
		state = types.TaskTimeout
	}
	s.terminal(res.id, state, res.err.Error())
	s.logger.Error().Str("task_id", res.id).Err(res.err).Str("state", string(state)).Msg("task failed terminally")

	switch {
	case r.task.SkipOnFailure:
		s.skipSubtree(res.id)
	case r.task.Priority == types.PriorityCritical:
		s.logger.Error().Str("task_id", res.id).Msg("critical task failed, aborting execution")
		s.aborted = true
		cancel()
		for id, other := range s.runs {
			if other.state == types.TaskPending {
				s.terminal(id, types.TaskCancelled, "critical task "+res.id+" failed")
			}
		}
	}
	// A plain failure leaves its dependents blocked; the final sweep marks
	// them CANCELLED.
}

// satisfyDependents clears the finished dependency and enqueues tasks whose
// dependency sets are now empty.
func (s *scheduler) satisfyDependents(id string) {
	for _, depID := range s.dependents[id] {
		r := s.runs[depID]
		if r.state != types.TaskPending {
			continue
		}
		delete(r.waiting, id)
		if len(r.waiting) == 0 {
			s.enqueue(depID)
		}
	}
}

// skipSubtree marks every transitive dependent SKIPPED. A SKIPPED
// dependency counts as satisfied, so siblings outside the subtree still
// run.
func (s *scheduler) skipSubtree(rootID string) {
	stack := append([]string(nil), s.dependents[rootID]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r := s.runs[id]
		if r.state != types.TaskPending {
			continue
		}
		s.terminal(id, types.TaskSkipped, "upstream task "+rootID+" skipped")
		stack = append(stack, s.dependents[id]...)
	}
}

// terminal records a final state for a task
func (s *scheduler) terminal(id string, state types.TaskState, errMsg string) {
	r := s.runs[id]
	r.state = state
	r.lastErr = errMsg
	s.record(r)
	metrics.WorkflowTasksTotal.WithLabelValues(string(state)).Inc()
}

// record writes the task's current state through the Store
func (s *scheduler) record(r *run) {
	rec := &types.TaskRecord{
		ExecutionID: s.exec.ID,
		TaskID:      r.task.ID,
		Name:        r.task.Name,
		State:       r.state,
		Attempts:    r.attempts,
		Error:       r.lastErr,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.engine.store.PutTaskRecord(rec); err != nil {
		s.logger.Error().Err(err).Str("task_id", r.task.ID).Msg("failed to persist task record")
	}
}

// finalStatus derives the execution status: SUCCESS only when every task
// ended SUCCESS, SKIPPED, or a skip-on-failure FAILED/TIMEOUT.
func (s *scheduler) finalStatus() types.ExecutionStatus {
	if s.aborted {
		return types.ExecutionFailed
	}
	for _, r := range s.runs {
		switch r.state {
		case types.TaskSuccess, types.TaskSkipped:
		case types.TaskFailed, types.TaskTimeout:
			if !r.task.SkipOnFailure {
				return types.ExecutionFailed
			}
		default:
			return types.ExecutionFailed
		}
	}
	return types.ExecutionSuccess
}

func (s *scheduler) countState(state types.TaskState) int {
	n := 0
	for _, r := range s.runs {
		if r.state == state {
			n++
		}
	}
	return n
}
