package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

// Server implements the ExchangeSimulator gRPC service for one exchange
// worker. Start/Stop are idempotent so retried control calls from a session
// never create duplicate simulator bindings.
type Server struct {
	pb.UnimplementedExchangeSimulatorServer

	exchangeID string
	endpoint   string // advertised in StartSimulatorResponse
	store      storage.Store
	mux        *Mux
	book       *ConvictionBook
}

// NewServer creates the worker service
func NewServer(exchangeID, endpoint string, store storage.Store, mux *Mux) *Server {
	return &Server{
		exchangeID: exchangeID,
		endpoint:   endpoint,
		store:      store,
		mux:        mux,
		book:       NewConvictionBook(),
	}
}

// SubscribeMarketData streams multiplexed bar updates until the client goes
// away or the subscriber is evicted for falling behind.
func (s *Server) SubscribeMarketData(req *pb.SubscriptionRequest, stream pb.ExchangeSimulator_SubscribeMarketDataServer) error {
	id := req.GetSubscriberId()
	if id == "" {
		id = uuid.New().String()
	}
	logger := log.WithExchangeID(s.exchangeID).With().Str("subscriber_id", id).Logger()

	sub, err := s.mux.Subscribe(id, req.GetSymbols(), req.GetIncludeHistory())
	if err != nil {
		return status.Errorf(codes.Internal, "subscribe: %v", err)
	}
	defer s.mux.Unsubscribe(id)

	logger.Info().Strs("symbols", req.GetSymbols()).Bool("history", req.GetIncludeHistory()).Msg("market-data subscriber attached")

	for {
		select {
		case <-stream.Context().Done():
			logger.Info().Msg("market-data subscriber detached")
			return nil
		case update, ok := <-sub.Updates:
			if !ok {
				logger.Warn().Msg("market-data subscriber evicted")
				return status.Error(codes.Unavailable, "subscriber evicted: send buffer overflow")
			}
			if err := stream.Send(update); err != nil {
				return err
			}
		}
	}
}

// StartSimulator binds a simulator to the session, returning the existing
// binding when one is already present.
func (s *Server) StartSimulator(ctx context.Context, req *pb.StartSimulatorRequest) (*pb.StartSimulatorResponse, error) {
	if req.GetSessionId() == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}

	if existing, err := s.store.GetSimulatorBySession(req.GetSessionId()); err == nil {
		return &pb.StartSimulatorResponse{
			SimulatorId: existing.ID,
			Endpoint:    existing.Endpoint,
			Status:      string(existing.Status),
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, status.Errorf(codes.Internal, "lookup simulator: %v", err)
	}

	sim := &types.SimulatorInstance{
		ID:         uuid.New().String(),
		SessionID:  req.GetSessionId(),
		UserID:     req.GetUserId(),
		Status:     types.SimulatorConnected,
		Endpoint:   s.endpoint,
		CreatedAt:  time.Now().UTC(),
		LastActive: time.Now().UTC(),
	}
	if err := s.store.CreateSimulator(sim); err != nil {
		return nil, status.Errorf(codes.Internal, "create simulator: %v", err)
	}

	log.WithExchangeID(s.exchangeID).Info().
		Str("simulator_id", sim.ID).
		Str("session_id", sim.SessionID).
		Msg("simulator started")

	return &pb.StartSimulatorResponse{
		SimulatorId: sim.ID,
		Endpoint:    sim.Endpoint,
		Status:      string(sim.Status),
	}, nil
}

// StopSimulator releases the session's simulator. Stopping a session with no
// binding succeeds.
func (s *Server) StopSimulator(ctx context.Context, req *pb.StopSimulatorRequest) (*pb.StopSimulatorResponse, error) {
	sim, err := s.store.GetSimulatorBySession(req.GetSessionId())
	if errors.Is(err, storage.ErrNotFound) {
		return &pb.StopSimulatorResponse{Success: true}, nil
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "lookup simulator: %v", err)
	}

	if err := s.store.DeleteSimulator(sim.ID); err != nil {
		return &pb.StopSimulatorResponse{Success: false, ErrorMessage: err.Error()}, nil
	}
	s.mux.Unsubscribe(req.GetSessionId())

	log.WithExchangeID(s.exchangeID).Info().
		Str("simulator_id", sim.ID).
		Str("session_id", sim.SessionID).
		Msg("simulator stopped")

	return &pb.StopSimulatorResponse{Success: true}, nil
}

// Heartbeat refreshes the simulator binding's last-active timestamp
func (s *Server) Heartbeat(ctx context.Context, req *pb.HeartbeatRequest) (*pb.HeartbeatResponse, error) {
	now := time.Now().UTC()

	sim, err := s.store.GetSimulatorBySession(req.GetSessionId())
	if err == nil {
		sim.LastActive = now
		if err := s.store.UpdateSimulator(sim); err != nil {
			log.WithExchangeID(s.exchangeID).Error().Err(err).Msg("failed to refresh simulator heartbeat")
		}
	}

	return &pb.HeartbeatResponse{
		ServerTimestamp: now.UnixMilli(),
		Status:          "ok",
	}, nil
}

// SubmitConvictions accepts a conviction batch for the session's simulator
func (s *Server) SubmitConvictions(ctx context.Context, req *pb.BatchConvictionRequest) (*pb.BatchConvictionResponse, error) {
	if req.GetSessionId() == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	if _, err := s.store.GetSimulatorBySession(req.GetSessionId()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, status.Error(codes.FailedPrecondition, "no simulator bound to session")
		}
		return nil, status.Errorf(codes.Internal, "lookup simulator: %v", err)
	}
	return s.book.Submit(req.GetSessionId(), req.GetConvictions()), nil
}

// Serve runs the gRPC server on addr until ctx is cancelled
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	pb.RegisterExchangeSimulatorServer(grpcServer, s)

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	log.WithExchangeID(s.exchangeID).Info().Str("addr", addr).Msg("exchange worker gRPC server listening")
	return grpcServer.Serve(lis)
}
