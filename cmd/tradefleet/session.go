package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/events"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/session"
	"github.com/opentrade/tradefleet/pkg/supervisor"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run a session-singleton instance",
	Long: `A session instance serves one user's trading session over
WebSocket, relaying market data from the user's exchange worker. It
advertises readiness through the ready file while unbound; the router
assigns a user by opening the first WebSocket.`,
	RunE: runSession,
}

func init() {
	sessionCmd.Flags().String("addr", ":8081", "WebSocket listen address")
	sessionCmd.Flags().String("worker-endpoint", "", "Exchange worker gRPC endpoint (default derived from EXCHANGE_ID)")
	sessionCmd.Flags().String("auth-token", "", "Static auth token accepted in development")
	sessionCmd.Flags().String("auth-user", "dev-user", "User id bound to the static auth token")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	addr, _ := cmd.Flags().GetString("addr")
	endpoint, _ := cmd.Flags().GetString("worker-endpoint")
	authToken, _ := cmd.Flags().GetString("auth-token")
	authUser, _ := cmd.Flags().GetString("auth-user")

	if endpoint == "" {
		if cfg.ExchangeID == "" {
			return fmt.Errorf("either --worker-endpoint or EXCHANGE_ID must be set")
		}
		endpoint = fmt.Sprintf("%s:%d", cluster.WorkerName(cfg.ExchangeID), cfg.GRPCPort)
	}

	auth := &session.StaticAuthenticator{Tokens: map[string]string{}}
	if authToken != "" {
		auth.Tokens[authToken] = authUser
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	// The supervisor's sink is the service, and the service drives the
	// supervisor; wire the cycle through the interface after construction.
	var svc *session.Service
	sink := &deferredSink{}
	upstream := session.NewSupervisor(endpoint, cfg.HeartbeatInterval, sink)

	svc, err = session.NewService(store, auth, upstream, broker, session.Config{
		SessionTimeout:     cfg.SessionTimeout,
		ExtensionThreshold: cfg.ExtensionThreshold,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		ReadyFilePath:      cfg.ReadyFilePath,
		ActiveLockFilePath: cfg.ActiveLockFilePath,
		ResetOnStartup:     cfg.ResetOnStartup,
	})
	if err != nil {
		return err
	}
	sink.Sink = svc

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(ctx)
	sup.Go("expiry-watch", func(ctx context.Context) error {
		svc.ExpiryWatch(ctx)
		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", svc.ServeWS)
	wsServer := &http.Server{Addr: addr, Handler: mux}
	sup.Go("ws-server", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = wsServer.Shutdown(shutdownCtx)
		}()
		if err := wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	health := metrics.NewHealthServer(Version, metrics.StoreCheck(storePing(store)), svc.Ready)
	sup.Go("health", func(ctx context.Context) error {
		return serveHealth(ctx, health, fmt.Sprintf(":%d", cfg.MetricsPort))
	})

	logger := log.WithComponent("session")
	logger.Info().Str("addr", addr).Str("worker", endpoint).Msg("session instance ready")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	svc.Drain(session.ReasonServerShutdown)

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sup.Shutdown(drainCtx)
}

// deferredSink breaks the service/supervisor construction cycle
type deferredSink struct {
	session.Sink
}
