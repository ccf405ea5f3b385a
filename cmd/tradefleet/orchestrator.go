package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/events"
	"github.com/opentrade/tradefleet/pkg/lifecycle"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/supervisor"
	"github.com/opentrade/tradefleet/pkg/workflow"
)

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Run the exchange-worker lifecycle orchestrator",
	Long: `The orchestrator reconciles running exchange workers against each
exchange's market-hours window, runs the SOD and EOD workflows on their
cron schedules, and serves health and metrics endpoints.`,
	RunE: runOrchestrator,
}

func init() {
	orchestratorCmd.Flags().String("cluster", "containerd", "Cluster backend: containerd or fake")
	orchestratorCmd.Flags().String("sod-schedule", "30 3 * * MON-FRI", "Cron schedule (UTC) for the SOD workflow")
	orchestratorCmd.Flags().String("eod-schedule", "30 21 * * MON-FRI", "Cron schedule (UTC) for the EOD workflow")
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	cfg, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	clusterBackend, _ := cmd.Flags().GetString("cluster")
	sodSchedule, _ := cmd.Flags().GetString("sod-schedule")
	eodSchedule, _ := cmd.Flags().GetString("eod-schedule")

	var ops cluster.Ops
	switch clusterBackend {
	case "containerd":
		cops, err := cluster.NewContainerdOps(cfg.ContainerdSocket, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to connect to containerd: %w", err)
		}
		defer cops.Close()
		ops = cops
	case "fake":
		ops = cluster.NewFakeOps()
	default:
		return fmt.Errorf("unknown cluster backend %q", clusterBackend)
	}

	logger := log.WithComponent("orchestrator")

	// Refuse to come up against broken dependencies; transient failures get
	// a bounded retry budget before the verdict.
	checks := []workflow.Check{
		{Name: "store", Critical: true, Timeout: 10 * time.Second, RetryCount: 2, Fn: func(context.Context) error {
			_, err := store.ListExchanges()
			return err
		}},
		{Name: "cluster", Critical: true, Timeout: 10 * time.Second, RetryCount: 2, Fn: func(ctx context.Context) error {
			_, err := ops.List(ctx)
			return err
		}},
	}
	results, ready := workflow.RunChecks(context.Background(), checks)
	for _, r := range results {
		logger.Info().Str("check", r.Name).Bool("ok", r.OK).Int("attempts", r.Attempts).Msg("dependency check")
	}
	if !ready {
		return fmt.Errorf("dependency checks failed")
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	eventFeed := broker.Subscribe()

	// The start gate holds new worker starts until the SOD workflow has
	// verified dependencies. Open by default so a mid-day restart does not
	// strand the fleet.
	startGate := &atomic.Bool{}
	startGate.Store(true)

	engine := workflow.NewEngine(store, broker, workflow.DefaultConcurrency)
	if err := workflow.LoadDefinitions(engine, cfg.WorkflowFile, makeActions(store, ops, startGate)); err != nil {
		return err
	}

	ctrl := lifecycle.NewController(store, ops, lifecycle.Config{
		CheckInterval: cfg.CheckInterval,
		Broker:        broker,
		StartGate:     func(context.Context) bool { return startGate.Load() },
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(ctx)
	sup.Go("lifecycle", func(ctx context.Context) error {
		ctrl.Run(ctx)
		return nil
	})

	// Log tap: every control-plane event lands in the orchestrator log.
	sup.Go("event-tap", func(ctx context.Context) error {
		tapLogger := log.WithComponent("events")
		for {
			select {
			case ev, ok := <-eventFeed:
				if !ok {
					return nil
				}
				msg := ev.Message
				if msg == "" {
					msg = string(ev.Type)
				}
				tapLogger.Info().
					Str("event", string(ev.Type)).
					Interface("metadata", ev.Metadata).
					Msg(msg)
			case <-ctx.Done():
				broker.Unsubscribe(eventFeed)
				return nil
			}
		}
	})

	scheduler := cron.New(cron.WithLocation(time.UTC))
	addWorkflowJob(ctx, scheduler, engine, "sod", sodSchedule)
	addWorkflowJob(ctx, scheduler, engine, "eod", eodSchedule)
	scheduler.Start()
	defer scheduler.Stop()

	health := metrics.NewHealthServer(Version, metrics.StoreCheck(storePing(store)))
	sup.Go("health", func(ctx context.Context) error {
		return serveHealth(ctx, health, fmt.Sprintf(":%d", cfg.MetricsPort))
	})

	logger.Info().
		Str("cluster", clusterBackend).
		Str("sod", sodSchedule).
		Str("eod", eodSchedule).
		Msg("orchestrator running")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sup.Shutdown(drainCtx)
}

func addWorkflowJob(ctx context.Context, scheduler *cron.Cron, engine *workflow.Engine, name, spec string) {
	logger := log.WithComponent("orchestrator")
	_, err := scheduler.AddFunc(spec, func() {
		if _, err := engine.Execute(ctx, name); err != nil {
			logger.Error().Err(err).Str("workflow", name).Msg("scheduled workflow failed")
		}
	})
	if err != nil {
		logger.Error().Err(err).Str("workflow", name).Str("schedule", spec).Msg("failed to schedule workflow")
	}
}
