package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/types"
)

// simWorker is a minimal in-process exchange worker. It records control
// RPCs and, on stop, whether the market-data stream was still live.
type simWorker struct {
	pb.UnimplementedExchangeSimulatorServer

	mu             sync.Mutex
	starts         int
	stops          int
	streamCtx      context.Context
	stopStreamLive bool
}

func (w *simWorker) StartSimulator(ctx context.Context, req *pb.StartSimulatorRequest) (*pb.StartSimulatorResponse, error) {
	w.mu.Lock()
	w.starts++
	w.mu.Unlock()
	return &pb.StartSimulatorResponse{SimulatorId: "sim-1", Status: "RUNNING"}, nil
}

func (w *simWorker) StopSimulator(ctx context.Context, req *pb.StopSimulatorRequest) (*pb.StopSimulatorResponse, error) {
	w.mu.Lock()
	w.stops++
	if w.streamCtx != nil && w.streamCtx.Err() == nil {
		w.stopStreamLive = true
	}
	w.mu.Unlock()
	return &pb.StopSimulatorResponse{Success: true}, nil
}

func (w *simWorker) Heartbeat(ctx context.Context, req *pb.HeartbeatRequest) (*pb.HeartbeatResponse, error) {
	return &pb.HeartbeatResponse{ServerTimestamp: time.Now().UnixMilli(), Status: "RUNNING"}, nil
}

func (w *simWorker) SubscribeMarketData(req *pb.SubscriptionRequest, stream pb.ExchangeSimulator_SubscribeMarketDataServer) error {
	w.mu.Lock()
	w.streamCtx = stream.Context()
	w.mu.Unlock()

	err := stream.Send(&pb.MarketDataUpdate{
		Timestamp: time.Now().UnixMilli(),
		Data:      []*pb.SymbolData{{Symbol: "AAPL", Close: "101.25"}},
	})
	if err != nil {
		return err
	}
	<-stream.Context().Done()
	return stream.Context().Err()
}

type recordingSink struct {
	mu       sync.Mutex
	updates  []*pb.MarketDataUpdate
	statuses []types.SimulatorStatus
}

func (r *recordingSink) DeliverUpdate(u *pb.MarketDataUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recordingSink) SimulatorStatusChanged(status types.SimulatorStatus) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
}

func (r *recordingSink) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func startWorker(t *testing.T) (*simWorker, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	worker := &simWorker{}
	server := grpc.NewServer()
	pb.RegisterExchangeSimulatorServer(server, worker)
	go server.Serve(ln)
	t.Cleanup(server.Stop)

	return worker, ln.Addr().String()
}

func TestSupervisor_BindStreamsUpdates(t *testing.T) {
	worker, addr := startWorker(t)
	sink := &recordingSink{}
	sv := NewSupervisor(addr, time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sv.Bind(ctx, &types.Session{ID: "sess-1", UserID: "alice"})

	require.Eventually(t, func() bool {
		return sv.Status() == types.SimulatorConnected
	}, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return sink.updateCount() > 0
	}, 3*time.Second, 10*time.Millisecond)

	worker.mu.Lock()
	starts := worker.starts
	worker.mu.Unlock()
	assert.Equal(t, 1, starts)

	sink.mu.Lock()
	assert.Equal(t, "AAPL", sink.updates[0].GetData()[0].GetSymbol())
	sink.mu.Unlock()
}

func TestSupervisor_ReleaseStopsBeforeTeardown(t *testing.T) {
	worker, addr := startWorker(t)
	sink := &recordingSink{}
	sv := NewSupervisor(addr, time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bindDone := make(chan struct{})
	go func() {
		sv.Bind(ctx, &types.Session{ID: "sess-1", UserID: "alice"})
		close(bindDone)
	}()

	require.Eventually(t, func() bool {
		return sv.Status() == types.SimulatorConnected
	}, 3*time.Second, 10*time.Millisecond)

	relCtx, relCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer relCancel()
	sv.Release(relCtx)

	// Release shuts the bind goroutine down itself; the caller's bind
	// context is still live here.
	select {
	case <-bindDone:
	case <-time.After(time.Second):
		t.Fatal("bind goroutine did not return after Release")
	}

	worker.mu.Lock()
	stops := worker.stops
	stopStreamLive := worker.stopStreamLive
	worker.mu.Unlock()
	assert.Equal(t, 1, stops)
	assert.True(t, stopStreamLive, "stop must be delivered before the stream tears down")
	assert.Equal(t, types.SimulatorDisconnected, sv.Status())
}
