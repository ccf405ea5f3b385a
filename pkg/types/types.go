package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange describes one exchange group whose per-user simulators are hosted
// by a single exchange worker.
type Exchange struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Timezone      string `json:"timezone"`        // IANA name, e.g. "America/New_York"
	PreOpenTime   string `json:"pre_open_time"`   // local wall clock "HH:MM"
	PostCloseTime string `json:"post_close_time"` // local wall clock "HH:MM"
	Image         string `json:"image"`
	GRPCPort      int    `json:"grpc_port"`
	Symbols       []string
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionStatus represents the lifecycle state of a user session
type SessionStatus string

const (
	SessionCreating     SessionStatus = "CREATING"
	SessionActive       SessionStatus = "ACTIVE"
	SessionReconnecting SessionStatus = "RECONNECTING"
	SessionInactive     SessionStatus = "INACTIVE"
	SessionExpired      SessionStatus = "EXPIRED"
	SessionError        SessionStatus = "ERROR"
)

// ConnectionQuality is derived from heartbeat latency and missed heartbeats
type ConnectionQuality string

const (
	QualityGood     ConnectionQuality = "good"
	QualityDegraded ConnectionQuality = "degraded"
	QualityPoor     ConnectionQuality = "poor"
)

// SimulatorStatus reports the session's view of its exchange worker connection
type SimulatorStatus string

const (
	SimulatorConnected    SimulatorStatus = "CONNECTED"
	SimulatorConnecting   SimulatorStatus = "CONNECTING"
	SimulatorDisconnected SimulatorStatus = "DISCONNECTED"
	SimulatorError        SimulatorStatus = "ERROR"
	SimulatorChecking     SimulatorStatus = "CHECKING"
)

// Session is one user's trading session, owned by a session-singleton instance
type Session struct {
	ID         string        `json:"session_id" db:"session_id"`
	UserID     string        `json:"user_id" db:"user_id"`
	DeviceID   string        `json:"device_id" db:"device_id"`
	Status     SessionStatus `json:"status" db:"status"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	LastActive time.Time     `json:"last_active" db:"last_active"`
	ExpiresAt  time.Time     `json:"expires_at" db:"expires_at"`
	Metadata   SessionMetadata
}

// SessionMetadata carries the mutable connection-health attributes of a session
type SessionMetadata struct {
	Quality           ConnectionQuality `json:"connection_quality"`
	ReconnectCount    int               `json:"reconnect_count"`
	HeartbeatLatency  int64             `json:"heartbeat_latency_ms"`
	MissedHeartbeats  int               `json:"missed_heartbeats"`
	SimulatorID       string            `json:"simulator_id,omitempty"`
	SimulatorEndpoint string            `json:"simulator_endpoint,omitempty"`
	SimulatorStatus   SimulatorStatus   `json:"simulator_status,omitempty"`
}

// SimulatorInstance records the binding between a session and its exchange worker
type SimulatorInstance struct {
	ID         string          `json:"simulator_id" db:"simulator_id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Status     SimulatorStatus `json:"status" db:"status"`
	Endpoint   string          `json:"endpoint" db:"endpoint"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	LastActive time.Time       `json:"last_active" db:"last_active"`
}

// Bar is a per-minute OHLCV summary for one symbol.
// Timestamp is always UTC and floored to the minute; (Timestamp, Symbol) is
// the natural key and upserts on it are idempotent.
type Bar struct {
	Timestamp  time.Time       `json:"timestamp" db:"time"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Open       decimal.Decimal `json:"open" db:"open"`
	High       decimal.Decimal `json:"high" db:"high"`
	Low        decimal.Decimal `json:"low" db:"low"`
	Close      decimal.Decimal `json:"close" db:"close"`
	VWAP       decimal.Decimal `json:"vwap" db:"vwap"`
	VWAS       decimal.Decimal `json:"vwas" db:"vwas"`
	VWAV       decimal.Decimal `json:"vwav" db:"vwav"`
	Volume     int64           `json:"volume" db:"volume"`
	TradeCount int64           `json:"trade_count" db:"trade_count"`
	Currency   string          `json:"currency" db:"currency"` // ISO-4217
}

// ConvictionSide is the direction of a conviction
type ConvictionSide string

const (
	SideBuy  ConvictionSide = "BUY"
	SideSell ConvictionSide = "SELL"
)

// ParticipationRate is the target fraction of market volume orders may consume
type ParticipationRate string

const (
	ParticipationLow    ParticipationRate = "LOW"    // ~1%
	ParticipationMedium ParticipationRate = "MEDIUM" // ~3%
	ParticipationHigh   ParticipationRate = "HIGH"   // ~5%
)

// Fraction returns the numeric mapping for a participation rate
func (p ParticipationRate) Fraction() float64 {
	switch p {
	case ParticipationMedium:
		return 0.03
	case ParticipationHigh:
		return 0.05
	default:
		return 0.01
	}
}

// Conviction is a higher-level trading directive the exchange converts into orders
type Conviction struct {
	ID            string            `json:"conviction_id"`
	Symbol        string            `json:"symbol"`
	Side          ConvictionSide    `json:"side"`
	TargetQty     int64             `json:"target_qty"`
	Participation ParticipationRate `json:"participation"`
}

// TaskPriority orders workflow tasks in the ready queue
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p TaskPriority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// TaskState represents the runtime state of a workflow task
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskSuccess   TaskState = "SUCCESS"
	TaskFailed    TaskState = "FAILED"
	TaskTimeout   TaskState = "TIMEOUT"
	TaskSkipped   TaskState = "SKIPPED"
	TaskCancelled TaskState = "CANCELLED"
)

// ExecutionStatus represents the overall state of a workflow execution
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "RUNNING"
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
)

// WorkflowExecution is the persisted record of one workflow run
type WorkflowExecution struct {
	ID             string          `json:"execution_id" db:"execution_id"`
	Name           string          `json:"name" db:"name"`
	Status         ExecutionStatus `json:"status" db:"status"`
	StartedAt      time.Time       `json:"started_at" db:"started_at"`
	CompletedAt    time.Time       `json:"completed_at" db:"completed_at"`
	TotalTasks     int             `json:"total_tasks" db:"total_tasks"`
	CompletedTasks int             `json:"completed_tasks" db:"completed_tasks"`
	FailedTasks    int             `json:"failed_tasks" db:"failed_tasks"`
}

// TaskRecord is the persisted record of one task transition within an execution
type TaskRecord struct {
	ExecutionID string    `json:"execution_id" db:"execution_id"`
	TaskID      string    `json:"task_id" db:"task_id"`
	Name        string    `json:"name" db:"name"`
	State       TaskState `json:"state" db:"state"`
	Attempts    int       `json:"attempts" db:"attempts"`
	Error       string    `json:"error,omitempty" db:"error"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
