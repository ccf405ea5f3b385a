package storage

import (
	"fmt"
	"sync"

	"github.com/opentrade/tradefleet/pkg/types"
)

// MemoryStore implements Store with process-local maps.
// Used by tests and as the development default.
type MemoryStore struct {
	mu         sync.RWMutex
	exchanges  map[string]*types.Exchange
	sessions   map[string]*types.Session
	simulators map[string]*types.SimulatorInstance
	latest     map[string]*types.Bar // symbol -> most recent bar
	executions map[string]*types.WorkflowExecution
	tasks      map[string]map[string]*types.TaskRecord // executionID -> taskID -> record
	taskOrder  map[string][]string                     // executionID -> insertion order
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exchanges:  make(map[string]*types.Exchange),
		sessions:   make(map[string]*types.Session),
		simulators: make(map[string]*types.SimulatorInstance),
		latest:     make(map[string]*types.Bar),
		executions: make(map[string]*types.WorkflowExecution),
		tasks:      make(map[string]map[string]*types.TaskRecord),
		taskOrder:  make(map[string][]string),
	}
}

func (s *MemoryStore) CreateExchange(ex *types.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ex
	s.exchanges[ex.ID] = &cp
	return nil
}

func (s *MemoryStore) GetExchange(id string) (*types.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.exchanges[id]
	if !ok {
		return nil, fmt.Errorf("exchange %s: %w", id, ErrNotFound)
	}
	cp := *ex
	return &cp, nil
}

func (s *MemoryStore) ListExchanges() ([]*types.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Exchange, 0, len(s.exchanges))
	for _, ex := range s.exchanges {
		cp := *ex
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) UpdateExchange(ex *types.Exchange) error {
	return s.CreateExchange(ex) // upsert
}

func (s *MemoryStore) DeleteExchange(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exchanges, id)
	return nil
}

func (s *MemoryStore) CreateSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) UpdateSession(sess *types.Session) error {
	return s.CreateSession(sess)
}

func (s *MemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) CreateSimulator(sim *types.SimulatorInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sim
	s.simulators[sim.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSimulator(id string) (*types.SimulatorInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sim, ok := s.simulators[id]
	if !ok {
		return nil, fmt.Errorf("simulator %s: %w", id, ErrNotFound)
	}
	cp := *sim
	return &cp, nil
}

func (s *MemoryStore) GetSimulatorBySession(sessionID string) (*types.SimulatorInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sim := range s.simulators {
		if sim.SessionID == sessionID {
			cp := *sim
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("simulator for session %s: %w", sessionID, ErrNotFound)
}

func (s *MemoryStore) UpdateSimulator(sim *types.SimulatorInstance) error {
	return s.CreateSimulator(sim)
}

func (s *MemoryStore) DeleteSimulator(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.simulators, id)
	return nil
}

func (s *MemoryStore) UpsertBars(bars []*types.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bar := range bars {
		cur, ok := s.latest[bar.Symbol]
		if ok && cur.Timestamp.After(bar.Timestamp) {
			continue
		}
		cp := *bar
		s.latest[bar.Symbol] = &cp
	}
	return nil
}

func (s *MemoryStore) LatestBars(symbols []string) ([]*types.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Bar
	if len(symbols) == 0 {
		for _, bar := range s.latest {
			cp := *bar
			out = append(out, &cp)
		}
		return out, nil
	}
	for _, sym := range symbols {
		if bar, ok := s.latest[sym]; ok {
			cp := *bar
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateExecution(ex *types.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ex
	s.executions[ex.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateExecution(ex *types.WorkflowExecution) error {
	return s.CreateExecution(ex)
}

func (s *MemoryStore) GetExecution(id string) (*types.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	cp := *ex
	return &cp, nil
}

func (s *MemoryStore) PutTaskRecord(rec *types.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTask, ok := s.tasks[rec.ExecutionID]
	if !ok {
		byTask = make(map[string]*types.TaskRecord)
		s.tasks[rec.ExecutionID] = byTask
	}
	if _, seen := byTask[rec.TaskID]; !seen {
		s.taskOrder[rec.ExecutionID] = append(s.taskOrder[rec.ExecutionID], rec.TaskID)
	}
	cp := *rec
	byTask[rec.TaskID] = &cp
	return nil
}

func (s *MemoryStore) ListTaskRecords(executionID string) ([]*types.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTask := s.tasks[executionID]
	out := make([]*types.TaskRecord, 0, len(byTask))
	for _, taskID := range s.taskOrder[executionID] {
		cp := *byTask[taskID]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
