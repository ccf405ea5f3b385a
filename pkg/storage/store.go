package storage

import (
	"errors"

	"github.com/opentrade/tradefleet/pkg/types"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for the tradefleet control plane.
// Backends: in-memory (tests), BoltDB (single-node development), and
// Postgres (production). Core components only ever see this interface.
type Store interface {
	// Exchanges
	CreateExchange(ex *types.Exchange) error
	GetExchange(id string) (*types.Exchange, error)
	ListExchanges() ([]*types.Exchange, error)
	UpdateExchange(ex *types.Exchange) error
	DeleteExchange(id string) error

	// Sessions
	CreateSession(s *types.Session) error
	GetSession(id string) (*types.Session, error)
	UpdateSession(s *types.Session) error
	DeleteSession(id string) error

	// Simulator instances
	CreateSimulator(sim *types.SimulatorInstance) error
	GetSimulator(id string) (*types.SimulatorInstance, error)
	GetSimulatorBySession(sessionID string) (*types.SimulatorInstance, error)
	UpdateSimulator(sim *types.SimulatorInstance) error
	DeleteSimulator(id string) error

	// Market-data bars. UpsertBars is idempotent on (timestamp, symbol);
	// LatestBars returns the most recent bar per symbol (all symbols when
	// the filter is empty).
	UpsertBars(bars []*types.Bar) error
	LatestBars(symbols []string) ([]*types.Bar, error)

	// Workflow executions
	CreateExecution(ex *types.WorkflowExecution) error
	UpdateExecution(ex *types.WorkflowExecution) error
	GetExecution(id string) (*types.WorkflowExecution, error)
	PutTaskRecord(rec *types.TaskRecord) error
	ListTaskRecords(executionID string) ([]*types.TaskRecord, error)

	// Utility
	Close() error
}
