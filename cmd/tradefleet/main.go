package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentrade/tradefleet/pkg/config"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tradefleet",
	Short: "TradeFleet - trading-simulation control plane",
	Long: `TradeFleet runs the control plane of a distributed trading
simulation: the orchestrator that keeps exchange workers aligned with
market hours, the session singletons that serve one user each, the
exchange workers that host simulators and fan out market data, and the
SOD/EOD workflow runner.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"TradeFleet version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(orchestratorCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(exchangeCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(seedCmd)
}

// setup loads config, initializes logging, and opens the Store selected by
// ENVIRONMENT: BoltDB for development, Postgres for production.
func setup() (*config.Config, storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON || cfg.Environment == config.EnvProduction,
	})

	var store storage.Store
	switch cfg.Environment {
	case config.EnvProduction:
		store, err = storage.NewPostgresStore(storage.PostgresConfig{
			DSN:            cfg.DB.DSN(),
			MinConnections: cfg.DB.MinConnections,
			MaxConnections: cfg.DB.MaxConnections,
		})
	default:
		store, err = storage.NewBoltStore(cfg.DataDir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return cfg, store, nil
}

// storePing adapts the Store into a readiness check probe
func storePing(store storage.Store) func() error {
	return func() error {
		_, err := store.ListExchanges()
		return err
	}
}

// serveHealth runs the health/metrics endpoint until ctx is cancelled
func serveHealth(ctx context.Context, hs *metrics.HealthServer, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.GetHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
