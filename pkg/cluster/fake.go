package cluster

import (
	"context"
	"sync"
)

// FakeOps is an in-memory Ops used by tests and by development mode when no
// containerd socket is available.
type FakeOps struct {
	mu        sync.Mutex
	running   map[string]WorkerSpec
	unhealthy map[string]bool

	// StartErr / StopErr, when set, fail the corresponding call
	StartErr error
	StopErr  error

	Starts int
	Stops  int
}

// NewFakeOps creates an empty fake cluster
func NewFakeOps() *FakeOps {
	return &FakeOps{
		running:   make(map[string]WorkerSpec),
		unhealthy: make(map[string]bool),
	}
}

func (f *FakeOps) Start(ctx context.Context, spec WorkerSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.Starts++
	f.running[spec.ExchangeID] = spec // starting an existing worker is a no-op
	return nil
}

func (f *FakeOps) Stop(ctx context.Context, exchangeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StopErr != nil {
		return f.StopErr
	}
	f.Stops++
	delete(f.running, exchangeID) // stopping a missing worker is a no-op
	return nil
}

func (f *FakeOps) List(ctx context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.running))
	for id := range f.running {
		out[id] = true
	}
	return out, nil
}

func (f *FakeOps) Healthy(ctx context.Context, exchangeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.running[exchangeID]
	return ok && !f.unhealthy[exchangeID]
}

// SetUnhealthy marks a running worker as failing its readiness probe
func (f *FakeOps) SetUnhealthy(exchangeID string, unhealthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhealthy[exchangeID] = unhealthy
}

// RunningCount returns the number of running workers
func (f *FakeOps) RunningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.running)
}
