// Package supervisor runs long-lived background tasks with panic recovery
// and backoff restarts, so one misbehaving loop never takes the process
// down.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/opentrade/tradefleet/pkg/log"
)

// Task is a long-running function; it should return when ctx is cancelled
type Task func(ctx context.Context) error

// Supervisor tracks a set of named background tasks
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a supervisor rooted at ctx
func New(ctx context.Context) *Supervisor {
	child, cancel := context.WithCancel(ctx)
	return &Supervisor{ctx: child, cancel: cancel}
}

// Go runs the task, restarting it with exponential backoff if it panics or
// returns an error before the supervisor shuts down. A clean nil return
// stops the task for good.
func (s *Supervisor) Go(name string, task Task) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger := log.WithComponent(name)
		b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}

		for {
			err := s.runOnce(name, task)
			if s.ctx.Err() != nil {
				return
			}
			if err == nil {
				return
			}
			wait := b.Duration()
			logger.Error().Err(err).Dur("restart_in", wait).Msg("background task failed, restarting")
			select {
			case <-time.After(wait):
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// runOnce executes one task incarnation, converting a panic into an error
func (s *Supervisor) runOnce(name string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent(name).Error().Interface("panic", r).Msg("background task panicked")
			err = &PanicError{Task: name, Value: r}
		}
	}()
	return task(s.ctx)
}

// Shutdown cancels all tasks and waits for them to return, bounded by ctx
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PanicError wraps a recovered panic from a supervised task
type PanicError struct {
	Task  string
	Value interface{}
}

func (e *PanicError) Error() string {
	return "task " + e.Task + " panicked"
}
