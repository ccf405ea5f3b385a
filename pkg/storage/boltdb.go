package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opentrade/tradefleet/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketExchanges  = []byte("exchanges")
	bucketSessions   = []byte("sessions")
	bucketSimulators = []byte("simulators")
	bucketBars       = []byte("bars_latest")
	bucketExecutions = []byte("workflow_executions")
	bucketTasks      = []byte("workflow_tasks")
)

// BoltStore implements Store using BoltDB, for single-node development
// deployments where Postgres is not available.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "tradefleet.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketExchanges,
			bucketSessions,
			bucketSimulators,
			bucketBars,
			bucketExecutions,
			bucketTasks,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, v interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// Exchange operations
func (s *BoltStore) CreateExchange(ex *types.Exchange) error {
	return s.put(bucketExchanges, ex.ID, ex)
}

func (s *BoltStore) GetExchange(id string) (*types.Exchange, error) {
	var ex types.Exchange
	if err := s.get(bucketExchanges, id, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *BoltStore) ListExchanges() ([]*types.Exchange, error) {
	var out []*types.Exchange
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExchanges).ForEach(func(k, v []byte) error {
			var ex types.Exchange
			if err := json.Unmarshal(v, &ex); err != nil {
				return err
			}
			out = append(out, &ex)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateExchange(ex *types.Exchange) error {
	return s.CreateExchange(ex) // Same as create (upsert)
}

func (s *BoltStore) DeleteExchange(id string) error {
	return s.delete(bucketExchanges, id)
}

// Session operations
func (s *BoltStore) CreateSession(sess *types.Session) error {
	return s.put(bucketSessions, sess.ID, sess)
}

func (s *BoltStore) GetSession(id string) (*types.Session, error) {
	var sess types.Session
	if err := s.get(bucketSessions, id, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *BoltStore) UpdateSession(sess *types.Session) error {
	return s.CreateSession(sess)
}

func (s *BoltStore) DeleteSession(id string) error {
	return s.delete(bucketSessions, id)
}

// Simulator operations
func (s *BoltStore) CreateSimulator(sim *types.SimulatorInstance) error {
	return s.put(bucketSimulators, sim.ID, sim)
}

func (s *BoltStore) GetSimulator(id string) (*types.SimulatorInstance, error) {
	var sim types.SimulatorInstance
	if err := s.get(bucketSimulators, id, &sim); err != nil {
		return nil, err
	}
	return &sim, nil
}

func (s *BoltStore) GetSimulatorBySession(sessionID string) (*types.SimulatorInstance, error) {
	var found *types.SimulatorInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSimulators).ForEach(func(k, v []byte) error {
			var sim types.SimulatorInstance
			if err := json.Unmarshal(v, &sim); err != nil {
				return err
			}
			if sim.SessionID == sessionID {
				found = &sim
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("simulator for session %s: %w", sessionID, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) UpdateSimulator(sim *types.SimulatorInstance) error {
	return s.CreateSimulator(sim)
}

func (s *BoltStore) DeleteSimulator(id string) error {
	return s.delete(bucketSimulators, id)
}

// Bar operations. The bucket keeps the latest bar per symbol; writing an
// older bar for a symbol is a no-op, which keeps upserts idempotent.
func (s *BoltStore) UpsertBars(bars []*types.Bar) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBars)
		for _, bar := range bars {
			if prev := b.Get([]byte(bar.Symbol)); prev != nil {
				var cur types.Bar
				if err := json.Unmarshal(prev, &cur); err == nil && cur.Timestamp.After(bar.Timestamp) {
					continue
				}
			}
			data, err := json.Marshal(bar)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(bar.Symbol), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LatestBars(symbols []string) ([]*types.Bar, error) {
	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		want[sym] = true
	}

	var out []*types.Bar
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBars).ForEach(func(k, v []byte) error {
			if len(want) > 0 && !want[string(k)] {
				return nil
			}
			var bar types.Bar
			if err := json.Unmarshal(v, &bar); err != nil {
				return err
			}
			out = append(out, &bar)
			return nil
		})
	})
	return out, err
}

// Workflow operations
func (s *BoltStore) CreateExecution(ex *types.WorkflowExecution) error {
	return s.put(bucketExecutions, ex.ID, ex)
}

func (s *BoltStore) UpdateExecution(ex *types.WorkflowExecution) error {
	return s.CreateExecution(ex)
}

func (s *BoltStore) GetExecution(id string) (*types.WorkflowExecution, error) {
	var ex types.WorkflowExecution
	if err := s.get(bucketExecutions, id, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *BoltStore) PutTaskRecord(rec *types.TaskRecord) error {
	key := rec.ExecutionID + "/" + rec.TaskID
	return s.put(bucketTasks, key, rec)
}

func (s *BoltStore) ListTaskRecords(executionID string) ([]*types.TaskRecord, error) {
	prefix := []byte(executionID + "/")
	var out []*types.TaskRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTasks).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var rec types.TaskRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}
