package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/opentrade/tradefleet/pkg/types"
)

// PostgresStore implements Store over a Postgres database. Production backend.
type PostgresStore struct {
	db *sqlx.DB
}

// PostgresConfig controls the connection pool
type PostgresConfig struct {
	DSN            string
	MinConnections int
	MaxConnections int
	ConnectTimeout time.Duration
}

// NewPostgresStore connects to Postgres and verifies the connection within a
// bounded deadline.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MinConnections)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type exchangeRow struct {
	ID            string    `db:"exch_id"`
	Type          string    `db:"exchange_type"`
	Timezone      string    `db:"timezone"`
	PreOpenTime   string    `db:"pre_open_time"`
	PostCloseTime string    `db:"post_close_time"`
	Image         string    `db:"image"`
	GRPCPort      int       `db:"grpc_port"`
	Symbols       []byte    `db:"symbols"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *exchangeRow) toExchange() (*types.Exchange, error) {
	ex := &types.Exchange{
		ID:            r.ID,
		Type:          r.Type,
		Timezone:      r.Timezone,
		PreOpenTime:   r.PreOpenTime,
		PostCloseTime: r.PostCloseTime,
		Image:         r.Image,
		GRPCPort:      r.GRPCPort,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if len(r.Symbols) > 0 {
		if err := json.Unmarshal(r.Symbols, &ex.Symbols); err != nil {
			return nil, fmt.Errorf("decode symbols for %s: %w", r.ID, err)
		}
	}
	return ex, nil
}

func (s *PostgresStore) CreateExchange(ex *types.Exchange) error {
	symbols, err := json.Marshal(ex.Symbols)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO exchanges (exch_id, exchange_type, timezone, pre_open_time, post_close_time, image, grpc_port, symbols, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (exch_id) DO UPDATE SET
			exchange_type = EXCLUDED.exchange_type,
			timezone = EXCLUDED.timezone,
			pre_open_time = EXCLUDED.pre_open_time,
			post_close_time = EXCLUDED.post_close_time,
			image = EXCLUDED.image,
			grpc_port = EXCLUDED.grpc_port,
			symbols = EXCLUDED.symbols,
			updated_at = EXCLUDED.updated_at`,
		ex.ID, ex.Type, ex.Timezone, ex.PreOpenTime, ex.PostCloseTime,
		ex.Image, ex.GRPCPort, symbols, ex.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert exchange %s: %w", ex.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetExchange(id string) (*types.Exchange, error) {
	var row exchangeRow
	err := s.db.Get(&row, `SELECT * FROM exchanges WHERE exch_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exchange %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange %s: %w", id, err)
	}
	return row.toExchange()
}

func (s *PostgresStore) ListExchanges() ([]*types.Exchange, error) {
	var rows []exchangeRow
	if err := s.db.Select(&rows, `SELECT * FROM exchanges ORDER BY exch_id`); err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	out := make([]*types.Exchange, 0, len(rows))
	for i := range rows {
		ex, err := rows[i].toExchange()
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *PostgresStore) UpdateExchange(ex *types.Exchange) error {
	return s.CreateExchange(ex)
}

func (s *PostgresStore) DeleteExchange(id string) error {
	_, err := s.db.Exec(`DELETE FROM exchanges WHERE exch_id = $1`, id)
	return err
}

func (s *PostgresStore) CreateSession(sess *types.Session) error {
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (session_id, user_id, device_id, status, created_at, last_active, expires_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			device_id = EXCLUDED.device_id,
			status = EXCLUDED.status,
			last_active = EXCLUDED.last_active,
			expires_at = EXCLUDED.expires_at,
			metadata = EXCLUDED.metadata`,
		sess.ID, sess.UserID, sess.DeviceID, sess.Status,
		sess.CreatedAt, sess.LastActive, sess.ExpiresAt, meta)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}
	return nil
}

type sessionRow struct {
	ID         string    `db:"session_id"`
	UserID     string    `db:"user_id"`
	DeviceID   string    `db:"device_id"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	LastActive time.Time `db:"last_active"`
	ExpiresAt  time.Time `db:"expires_at"`
	Metadata   []byte    `db:"metadata"`
}

func (s *PostgresStore) GetSession(id string) (*types.Session, error) {
	var row sessionRow
	err := s.db.Get(&row, `SELECT * FROM sessions WHERE session_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess := &types.Session{
		ID:         row.ID,
		UserID:     row.UserID,
		DeviceID:   row.DeviceID,
		Status:     types.SessionStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		LastActive: row.LastActive,
		ExpiresAt:  row.ExpiresAt,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("decode session metadata for %s: %w", id, err)
		}
	}
	return sess, nil
}

func (s *PostgresStore) UpdateSession(sess *types.Session) error {
	return s.CreateSession(sess)
}

func (s *PostgresStore) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = $1`, id)
	return err
}

func (s *PostgresStore) CreateSimulator(sim *types.SimulatorInstance) error {
	_, err := s.db.Exec(`
		INSERT INTO simulator_instances (simulator_id, session_id, user_id, status, endpoint, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (simulator_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			status = EXCLUDED.status,
			endpoint = EXCLUDED.endpoint,
			last_active = EXCLUDED.last_active`,
		sim.ID, sim.SessionID, sim.UserID, sim.Status, sim.Endpoint, sim.CreatedAt, sim.LastActive)
	if err != nil {
		return fmt.Errorf("upsert simulator %s: %w", sim.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetSimulator(id string) (*types.SimulatorInstance, error) {
	var sim types.SimulatorInstance
	err := s.db.Get(&sim, `SELECT * FROM simulator_instances WHERE simulator_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("simulator %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get simulator %s: %w", id, err)
	}
	return &sim, nil
}

func (s *PostgresStore) GetSimulatorBySession(sessionID string) (*types.SimulatorInstance, error) {
	var sim types.SimulatorInstance
	err := s.db.Get(&sim, `SELECT * FROM simulator_instances WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("simulator for session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get simulator by session %s: %w", sessionID, err)
	}
	return &sim, nil
}

func (s *PostgresStore) UpdateSimulator(sim *types.SimulatorInstance) error {
	return s.CreateSimulator(sim)
}

func (s *PostgresStore) DeleteSimulator(id string) error {
	_, err := s.db.Exec(`DELETE FROM simulator_instances WHERE simulator_id = $1`, id)
	return err
}

// UpsertBars writes a batch of bars in one transaction. Conflicts on
// (time, symbol) update in place so replayed batches are idempotent.
func (s *PostgresStore) UpsertBars(bars []*types.Bar) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin bar upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Preparex(`
		INSERT INTO market_data_bars (time, symbol, open, high, low, close, vwap, vwas, vwav, volume, trade_count, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (time, symbol) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			vwap = EXCLUDED.vwap,
			vwas = EXCLUDED.vwas,
			vwav = EXCLUDED.vwav,
			volume = EXCLUDED.volume,
			trade_count = EXCLUDED.trade_count,
			currency = EXCLUDED.currency`)
	if err != nil {
		return fmt.Errorf("prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.Exec(
			bar.Timestamp, bar.Symbol,
			bar.Open, bar.High, bar.Low, bar.Close,
			bar.VWAP, bar.VWAS, bar.VWAV,
			bar.Volume, bar.TradeCount, bar.Currency,
		); err != nil {
			return fmt.Errorf("upsert bar %s@%s: %w", bar.Symbol, bar.Timestamp, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) LatestBars(symbols []string) ([]*types.Bar, error) {
	query := `
		SELECT DISTINCT ON (symbol) *
		FROM market_data_bars
		ORDER BY symbol, time DESC`
	args := []interface{}{}
	if len(symbols) > 0 {
		query = `
			SELECT DISTINCT ON (symbol) *
			FROM market_data_bars
			WHERE symbol = ANY($1)
			ORDER BY symbol, time DESC`
		args = append(args, pq.Array(symbols))
	}

	var out []*types.Bar
	if err := s.db.Select(&out, query, args...); err != nil {
		return nil, fmt.Errorf("latest bars: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateExecution(ex *types.WorkflowExecution) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_executions (execution_id, name, status, started_at, completed_at, total_tasks, completed_tasks, failed_tasks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			completed_tasks = EXCLUDED.completed_tasks,
			failed_tasks = EXCLUDED.failed_tasks`,
		ex.ID, ex.Name, ex.Status, ex.StartedAt, ex.CompletedAt,
		ex.TotalTasks, ex.CompletedTasks, ex.FailedTasks)
	if err != nil {
		return fmt.Errorf("upsert execution %s: %w", ex.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateExecution(ex *types.WorkflowExecution) error {
	return s.CreateExecution(ex)
}

func (s *PostgresStore) GetExecution(id string) (*types.WorkflowExecution, error) {
	var ex types.WorkflowExecution
	err := s.db.Get(&ex, `SELECT * FROM workflow_executions WHERE execution_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return &ex, nil
}

func (s *PostgresStore) PutTaskRecord(rec *types.TaskRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_tasks (execution_id, task_id, name, state, attempts, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (execution_id, task_id) DO UPDATE SET
			state = EXCLUDED.state,
			attempts = EXCLUDED.attempts,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		rec.ExecutionID, rec.TaskID, rec.Name, rec.State, rec.Attempts, rec.Error, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert task record %s/%s: %w", rec.ExecutionID, rec.TaskID, err)
	}
	return nil
}

func (s *PostgresStore) ListTaskRecords(executionID string) ([]*types.TaskRecord, error) {
	var out []*types.TaskRecord
	err := s.db.Select(&out, `SELECT * FROM workflow_tasks WHERE execution_id = $1 ORDER BY updated_at`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list task records %s: %w", executionID, err)
	}
	return out, nil
}
