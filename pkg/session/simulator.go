package session

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/types"
)

const (
	dialTimeout    = 10 * time.Second
	controlTimeout = 5 * time.Second

	// MaxStreamAttempts bounds the reconnect loop; past it the simulator
	// status settles on ERROR until the session is rebound.
	MaxStreamAttempts = 10
)

// Sink receives updates and status changes from the supervisor. The session
// service is the only implementation.
type Sink interface {
	DeliverUpdate(u *pb.MarketDataUpdate)
	SimulatorStatusChanged(status types.SimulatorStatus)
}

// Supervisor owns the gRPC connection from a session instance to its
// exchange worker: it starts the simulator, keeps the market-data stream
// alive with exponential backoff, heartbeats the binding, and stops the
// simulator on release.
//
// Control RPCs go through a circuit breaker so a dead worker fails fast
// instead of stacking deadline waits.
type Supervisor struct {
	endpoint          string
	heartbeatInterval time.Duration
	sink              Sink
	breaker           *gobreaker.CircuitBreaker

	mu      sync.Mutex
	status  types.SimulatorStatus
	session *types.Session
	conn    *grpc.ClientConn
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSupervisor creates a supervisor for the given worker endpoint
func NewSupervisor(endpoint string, heartbeatInterval time.Duration, sink Sink) *Supervisor {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 10 * time.Second
	}
	return &Supervisor{
		endpoint:          endpoint,
		heartbeatInterval: heartbeatInterval,
		sink:              sink,
		status:            types.SimulatorDisconnected,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "exchange-worker",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Status returns the current simulator connection status
func (sv *Supervisor) Status() types.SimulatorStatus {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.status
}

func (sv *Supervisor) setStatus(status types.SimulatorStatus) {
	sv.mu.Lock()
	changed := sv.status != status
	sv.status = status
	sv.mu.Unlock()
	if changed && sv.sink != nil {
		sv.sink.SimulatorStatusChanged(status)
	}
}

// Bind connects to the worker and runs the stream loop until ctx is
// cancelled. Blocking; the session service calls it from a goroutine.
func (sv *Supervisor) Bind(ctx context.Context, sess *types.Session) {
	logger := log.WithSessionID(sess.ID).With().Str("endpoint", sv.endpoint).Logger()
	done := make(chan struct{})
	defer close(done)

	// Release cancels this context after the StopSimulator RPC, so the
	// stop always goes out over a live connection.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sv.mu.Lock()
	sv.session = sess
	sv.done = done
	sv.cancel = cancel
	sv.mu.Unlock()

	sv.setStatus(types.SimulatorConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := grpc.DialContext(dialCtx, sv.endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock())
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("failed to dial exchange worker")
		sv.setStatus(types.SimulatorError)
		return
	}
	defer conn.Close()

	sv.mu.Lock()
	sv.conn = conn
	sv.mu.Unlock()

	client := pb.NewExchangeSimulatorClient(conn)

	if _, err := sv.control(ctx, func(callCtx context.Context) (interface{}, error) {
		return client.StartSimulator(callCtx, &pb.StartSimulatorRequest{
			SessionId: sess.ID,
			UserId:    sess.UserID,
		})
	}); err != nil {
		logger.Error().Err(err).Msg("failed to start simulator")
		sv.setStatus(types.SimulatorError)
		return
	}

	go sv.heartbeatLoop(ctx, client, sess.ID, logger)

	sv.streamLoop(ctx, client, sess, logger)
}

// streamLoop keeps the market-data stream open, reconnecting with
// exponential backoff up to MaxStreamAttempts.
func (sv *Supervisor) streamLoop(ctx context.Context, client pb.ExchangeSimulatorClient, sess *types.Session, logger zerolog.Logger) {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; attempt < MaxStreamAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			metrics.SimulatorStreamReconnects.Inc()
			sv.setStatus(types.SimulatorConnecting)
			wait := b.Duration()
			logger.Warn().Int("attempt", attempt).Dur("backoff", wait).Msg("reconnecting market-data stream")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		stream, err := client.SubscribeMarketData(ctx, &pb.SubscriptionRequest{
			SubscriberId:   sess.ID,
			IncludeHistory: true,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to open market-data stream")
			continue
		}

		sv.setStatus(types.SimulatorConnected)
		b.Reset()

		for {
			update, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn().Err(err).Msg("market-data stream broke")
				break
			}
			sv.sink.DeliverUpdate(update)
		}
	}

	logger.Error().Int("attempts", MaxStreamAttempts).Msg("market-data stream reconnect budget exhausted")
	sv.setStatus(types.SimulatorError)
}

// heartbeatLoop keeps the worker-side binding alive while the session runs
func (sv *Supervisor) heartbeatLoop(ctx context.Context, client pb.ExchangeSimulatorClient, sessionID string, logger zerolog.Logger) {
	ticker := time.NewTicker(sv.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := sv.control(ctx, func(callCtx context.Context) (interface{}, error) {
				return client.Heartbeat(callCtx, &pb.HeartbeatRequest{
					SessionId:       sessionID,
					ClientTimestamp: time.Now().UnixMilli(),
				})
			}); err != nil {
				logger.Debug().Err(err).Msg("simulator heartbeat failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Release stops the simulator, shuts the bind goroutine down, and waits
// for it to return, bounded by ctx. The StopSimulator RPC goes out before
// the bind context is cancelled so it never races the connection teardown.
func (sv *Supervisor) Release(ctx context.Context) {
	sv.mu.Lock()
	sess := sv.session
	conn := sv.conn
	cancel := sv.cancel
	done := sv.done
	sv.session = nil
	sv.conn = nil
	sv.cancel = nil
	sv.mu.Unlock()

	if conn != nil && sess != nil {
		client := pb.NewExchangeSimulatorClient(conn)
		if _, err := sv.control(ctx, func(callCtx context.Context) (interface{}, error) {
			return client.StopSimulator(callCtx, &pb.StopSimulatorRequest{SessionId: sess.ID})
		}); err != nil {
			log.WithSessionID(sess.ID).Warn().Err(err).Msg("failed to stop simulator")
		}
	}

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	sv.setStatus(types.SimulatorDisconnected)
}

// control runs one unary control RPC through the circuit breaker with a
// bounded deadline.
func (sv *Supervisor) control(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	return sv.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, controlTimeout)
		defer cancel()
		return call(callCtx)
	})
}
