package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/markethours"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/workflow"
)

// makeActions builds the registry the workflow definitions bind against.
// ops may be nil for store-only runs; actions that need the cluster then
// fail with a clear error.
func makeActions(store storage.Store, ops cluster.Ops, startGate *atomic.Bool) map[string]workflow.TaskFunc {
	logger := log.WithComponent("workflow-actions")

	needOps := func(name string) error {
		if ops == nil {
			return fmt.Errorf("action %s requires a cluster connection", name)
		}
		return nil
	}

	return map[string]workflow.TaskFunc{
		"store-ping": func(ctx context.Context) error {
			_, err := store.ListExchanges()
			return err
		},

		"load-exchanges": func(ctx context.Context) error {
			exchanges, err := store.ListExchanges()
			if err != nil {
				return err
			}
			logger.Info().Int("exchanges", len(exchanges)).Msg("exchange registry loaded")
			return nil
		},

		"verify-market-hours": func(ctx context.Context) error {
			exchanges, err := store.ListExchanges()
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			for _, ex := range exchanges {
				if _, err := markethours.ForExchange(ex, now); err != nil {
					return fmt.Errorf("exchange %s: %w", ex.ID, err)
				}
			}
			return nil
		},

		"warm-bar-cache": func(ctx context.Context) error {
			bars, err := store.LatestBars(nil)
			if err != nil {
				return err
			}
			logger.Info().Int("symbols", len(bars)).Msg("latest-bar cache warmed")
			return nil
		},

		"open-start-gate": func(ctx context.Context) error {
			startGate.Store(true)
			logger.Info().Msg("worker start gate opened")
			return nil
		},

		"close-start-gate": func(ctx context.Context) error {
			startGate.Store(false)
			logger.Info().Msg("worker start gate closed")
			return nil
		},

		"stop-all-workers": func(ctx context.Context) error {
			if err := needOps("stop-all-workers"); err != nil {
				return err
			}
			running, err := ops.List(ctx)
			if err != nil {
				return err
			}
			for id := range running {
				if err := ops.Stop(ctx, id); err != nil {
					return fmt.Errorf("failed to stop worker %s: %w", id, err)
				}
			}
			logger.Info().Int("stopped", len(running)).Msg("all exchange workers stopped")
			return nil
		},

		"flush-bars": func(ctx context.Context) error {
			_, err := store.LatestBars(nil)
			return err
		},

		"verify-workers-stopped": func(ctx context.Context) error {
			if err := needOps("verify-workers-stopped"); err != nil {
				return err
			}
			running, err := ops.List(ctx)
			if err != nil {
				return err
			}
			if len(running) > 0 {
				return fmt.Errorf("%d workers still running", len(running))
			}
			return nil
		},
	}
}
