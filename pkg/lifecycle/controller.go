package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/events"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/markethours"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

// DefaultCheckInterval is the reconcile tick period
const DefaultCheckInterval = 60 * time.Second

// Clock returns the current instant; injectable for boundary tests
type Clock func() time.Time

// Gate, when set, must return true before the controller issues new worker
// starts. Used to hold workers back until start-of-day dependency checks pass.
type Gate func(ctx context.Context) bool

// Config holds controller configuration
type Config struct {
	CheckInterval time.Duration
	Clock         Clock
	Broker        *events.Broker
	StartGate     Gate
}

// Controller keeps the set of running exchange workers equal to the set of
// exchanges whose market-hours window contains now. It is a pure
// reconciliation loop: no state survives between ticks.
type Controller struct {
	store storage.Store
	ops   cluster.Ops

	checkInterval time.Duration
	clock         Clock
	broker        *events.Broker
	startGate     Gate

	mu sync.Mutex
}

// NewController creates a new lifecycle controller
func NewController(store storage.Store, ops cluster.Ops, cfg Config) *Controller {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Controller{
		store:         store,
		ops:           ops,
		checkInterval: cfg.CheckInterval,
		clock:         cfg.Clock,
		broker:        cfg.Broker,
		startGate:     cfg.StartGate,
	}
}

// Run blocks until ctx is cancelled, reconciling every check interval.
// The first pass runs immediately.
func (c *Controller) Run(ctx context.Context) {
	logger := log.WithComponent("lifecycle")
	logger.Info().Dur("interval", c.checkInterval).Msg("lifecycle controller started")

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	if err := c.Reconcile(ctx); err != nil {
		logger.Error().Err(err).Msg("reconcile failed")
	}

	for {
		select {
		case <-ticker.C:
			if err := c.Reconcile(ctx); err != nil {
				logger.Error().Err(err).Msg("reconcile failed")
			}
		case <-ctx.Done():
			logger.Info().Msg("lifecycle controller stopped")
			return
		}
	}
}

// ShouldBeRunning reports whether the exchange's worker should run at nowUTC
func (c *Controller) ShouldBeRunning(ex *types.Exchange, nowUTC time.Time) (bool, error) {
	return markethours.ShouldBeRunning(ex, nowUTC)
}

// Reconcile performs one pass: load exchanges, compute the desired set,
// observe the cluster, and start/stop the symmetric difference. A Store read
// failure aborts the pass; per-worker errors are logged and skipped.
func (c *Controller) Reconcile(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileCyclesTotal.Inc()
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	logger := log.WithComponent("lifecycle")
	now := c.clock()

	exchanges, err := c.store.ListExchanges()
	if err != nil {
		return fmt.Errorf("failed to list exchanges: %w", err)
	}

	desired := make(map[string]*types.Exchange)
	for _, ex := range exchanges {
		run, err := markethours.ShouldBeRunning(ex, now)
		if err != nil {
			logger.Error().Err(err).Str("exchange_id", ex.ID).Msg("skipping exchange with bad market hours")
			continue
		}
		if run {
			desired[ex.ID] = ex
		}
	}

	observed, err := c.ops.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to observe cluster: %w", err)
	}

	metrics.WorkersDesired.Set(float64(len(desired)))
	metrics.WorkersRunning.Set(float64(len(observed)))

	// Start missing workers
	gateOpen := c.startGate == nil || c.startGate(ctx)
	for id, ex := range desired {
		if observed[id] {
			continue
		}
		if !gateOpen {
			logger.Warn().Str("exchange_id", id).Msg("start gate closed, deferring worker start")
			continue
		}
		spec := cluster.SpecForExchange(ex)
		if err := c.ops.Start(ctx, spec); err != nil {
			metrics.WorkerOpsTotal.WithLabelValues("start", "error").Inc()
			logger.Error().Err(err).Str("exchange_id", id).Msg("failed to start worker")
			continue
		}
		metrics.WorkerOpsTotal.WithLabelValues("start", "ok").Inc()
		c.publish(events.EventWorkerStarted, id, "worker started")
	}

	// Stop workers outside their window
	for id := range observed {
		if _, want := desired[id]; want {
			continue
		}
		if err := c.ops.Stop(ctx, id); err != nil {
			metrics.WorkerOpsTotal.WithLabelValues("stop", "error").Inc()
			logger.Error().Err(err).Str("exchange_id", id).Msg("failed to stop worker")
			continue
		}
		metrics.WorkerOpsTotal.WithLabelValues("stop", "ok").Inc()
		c.publish(events.EventWorkerStopped, id, "worker stopped")
	}

	// Probe workers that should keep running. An unhealthy worker is logged
	// and left for the next tick; forcing a restart here would flap.
	for id := range observed {
		if _, want := desired[id]; !want {
			continue
		}
		if !c.ops.Healthy(ctx, id) {
			logger.Warn().Str("exchange_id", id).Msg("worker failed readiness probe")
			c.publish(events.EventWorkerUnhealthy, id, "readiness probe failed")
		}
	}

	return nil
}

func (c *Controller) publish(t events.EventType, exchangeID, msg string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		Type:     t,
		Message:  msg,
		Metadata: map[string]string{"exchange_id": exchangeID},
	})
}
