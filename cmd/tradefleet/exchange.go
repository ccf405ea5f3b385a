package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/exchange"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/supervisor"
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Run an exchange worker",
	Long: `An exchange worker hosts the simulators for one exchange group:
it serves the ExchangeSimulator gRPC service, runs the upstream bar feed,
and multiplexes market data to every subscribed session.`,
	RunE: runExchange,
}

func init() {
	exchangeCmd.Flags().StringSlice("symbols", nil, "Symbols for the simulated feed (default: the exchange record's symbols)")
	exchangeCmd.Flags().Duration("feed-interval", time.Minute, "Bar feed interval")
}

func runExchange(cmd *cobra.Command, args []string) error {
	cfg, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.ExchangeID == "" {
		return fmt.Errorf("EXCHANGE_ID must be set")
	}

	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	feedInterval, _ := cmd.Flags().GetDuration("feed-interval")

	currency := "USD"
	ex, err := store.GetExchange(cfg.ExchangeID)
	switch {
	case err == nil:
		if len(symbols) == 0 {
			symbols = ex.Symbols
		}
	case errors.Is(err, storage.ErrNotFound):
		log.WithExchangeID(cfg.ExchangeID).Warn().Msg("exchange record not found, running with flag symbols only")
	default:
		return fmt.Errorf("failed to load exchange record: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols configured for exchange %s", cfg.ExchangeID)
	}

	mux := exchange.NewMux(store, exchange.MuxConfig{})
	defer mux.Close()

	endpoint := fmt.Sprintf("%s:%d", cluster.WorkerName(cfg.ExchangeID), cfg.GRPCPort)
	server := exchange.NewServer(cfg.ExchangeID, endpoint, store, mux)
	feed := exchange.NewSimulatedFeed(symbols, currency, feedInterval, 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(ctx)
	sup.Go("feed", func(ctx context.Context) error {
		if err := feed.Run(ctx, mux.HandleBatch); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	sup.Go("grpc", func(ctx context.Context) error {
		return server.Serve(ctx, fmt.Sprintf(":%d", cfg.GRPCPort))
	})

	health := metrics.NewHealthServer(Version, metrics.StoreCheck(storePing(store)))
	sup.Go("health", func(ctx context.Context) error {
		return serveHealth(ctx, health, fmt.Sprintf(":%d", cfg.MetricsPort))
	})

	logger := log.WithExchangeID(cfg.ExchangeID)
	logger.Info().Strs("symbols", symbols).Int("grpc_port", cfg.GRPCPort).Msg("exchange worker running")

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sup.Shutdown(drainCtx)
}
