package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle controller metrics
	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_reconcile_cycles_total",
			Help: "Total number of lifecycle reconciliation cycles",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradefleet_reconcile_duration_seconds",
			Help:    "Duration of one reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkersDesired = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradefleet_workers_desired",
			Help: "Number of exchange workers that should be running",
		},
	)

	WorkersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradefleet_workers_running",
			Help: "Number of exchange workers observed running",
		},
	)

	WorkerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradefleet_worker_ops_total",
			Help: "Worker start/stop operations by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradefleet_sessions_active",
			Help: "Whether this instance has a bound session (1 = active)",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradefleet_ws_connections",
			Help: "Number of registered WebSocket device connections",
		},
	)

	WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradefleet_ws_messages_total",
			Help: "WebSocket frames by direction and type",
		},
		[]string{"direction", "type"},
	)

	HeartbeatLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradefleet_heartbeat_latency_seconds",
			Help:    "Client-reported heartbeat round-trip latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	SimulatorStreamReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_simulator_stream_reconnects_total",
			Help: "Reconnect attempts against the exchange worker stream",
		},
	)

	// Market-data multiplexer metrics
	SubscribersCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradefleet_mux_subscribers",
			Help: "Number of registered market-data subscribers",
		},
	)

	SubscribersEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_mux_subscribers_evicted_total",
			Help: "Subscribers evicted after a failed send",
		},
	)

	BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_mux_batches_total",
			Help: "Upstream bar batches processed",
		},
	)

	UpdatesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_mux_updates_sent_total",
			Help: "Per-subscriber updates delivered",
		},
	)

	UpdatesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_mux_updates_dropped_total",
			Help: "Updates dropped because a subscriber buffer was full",
		},
	)

	BarPersistErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradefleet_bar_persist_errors_total",
			Help: "Bar batch persistence failures (broadcast continues)",
		},
	)

	// Workflow metrics
	WorkflowExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradefleet_workflow_executions_total",
			Help: "Workflow executions by name and status",
		},
		[]string{"workflow", "status"},
	)

	WorkflowTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradefleet_workflow_tasks_total",
			Help: "Workflow task terminal states",
		},
		[]string{"state"},
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradefleet_workflow_duration_seconds",
			Help:    "End-to-end workflow execution duration",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"workflow"},
	)
)

func init() {
	prometheus.MustRegister(
		ReconcileCyclesTotal,
		ReconcileDuration,
		WorkersDesired,
		WorkersRunning,
		WorkerOpsTotal,
		SessionsActive,
		WSConnections,
		WSMessagesTotal,
		HeartbeatLatency,
		SimulatorStreamReconnects,
		SubscribersCount,
		SubscribersEvicted,
		BatchesTotal,
		UpdatesSentTotal,
		UpdatesDroppedTotal,
		BarPersistErrors,
		WorkflowExecutionsTotal,
		WorkflowTasksTotal,
		WorkflowDuration,
	)
}

// Handler returns the prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures a duration for a histogram observation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time on the given histogram
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}
