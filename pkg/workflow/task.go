package workflow

import (
	"container/heap"
	"context"
	"time"

	"github.com/opentrade/tradefleet/pkg/types"
)

// TaskFunc is the body of a workflow task. It must honor ctx; the engine
// enforces the task timeout through it.
type TaskFunc func(ctx context.Context) error

// Task is one node of a workflow DAG
type Task struct {
	ID           string
	Name         string
	Dependencies []string
	Priority     types.TaskPriority
	Timeout      time.Duration
	RetryCount   int

	// SkipOnFailure turns a terminal failure into SKIPPED propagation
	// downstream instead of failing the run.
	SkipOnFailure bool

	Run TaskFunc
}

// queueItem is one entry in the ready queue
type queueItem struct {
	task *Task
	seq  int // FIFO tiebreak within a priority
}

// readyQueue orders eligible tasks by priority, then enqueue order
type readyQueue []*queueItem

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority > q[j].task.Priority
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x interface{}) {
	*q = append(*q, x.(*queueItem))
}

func (q *readyQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*readyQueue)(nil)
