package exchange

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/types"
)

// ConvictionBook validates and accepts conviction batches for a worker.
// Accepted convictions get a broker id; the simulator works them against the
// feed at the conviction's participation rate.
type ConvictionBook struct{}

// NewConvictionBook creates an empty book
func NewConvictionBook() *ConvictionBook {
	return &ConvictionBook{}
}

// Submit validates a batch and returns one result per conviction, in input
// order. The batch succeeds only when every conviction is accepted; accepted
// entries keep their broker ids even when siblings fail, so callers can
// retry just the rejects.
func (b *ConvictionBook) Submit(sessionID string, convictions []*pb.Conviction) *pb.BatchConvictionResponse {
	logger := log.WithSessionID(sessionID)
	resp := &pb.BatchConvictionResponse{Success: true}

	for _, c := range convictions {
		if err := validateConviction(c); err != nil {
			resp.Success = false
			resp.Results = append(resp.Results, &pb.ConvictionResult{
				Success:      false,
				ErrorMessage: err.Error(),
			})
			logger.Warn().Str("conviction_id", c.GetConvictionId()).Err(err).Msg("conviction rejected")
			continue
		}
		brokerID := uuid.New().String()
		resp.Results = append(resp.Results, &pb.ConvictionResult{
			Success:  true,
			BrokerId: brokerID,
		})
		logger.Info().
			Str("conviction_id", c.GetConvictionId()).
			Str("broker_id", brokerID).
			Str("symbol", c.GetSymbol()).
			Str("side", c.GetSide()).
			Int64("target_qty", c.GetTargetQty()).
			Float64("participation", types.ParticipationRate(c.GetParticipation()).Fraction()).
			Msg("conviction accepted")
	}
	return resp
}

func validateConviction(c *pb.Conviction) error {
	if c.GetSymbol() == "" {
		return fmt.Errorf("symbol is required")
	}
	switch types.ConvictionSide(c.GetSide()) {
	case types.SideBuy, types.SideSell:
	default:
		return fmt.Errorf("invalid side %q", c.GetSide())
	}
	if c.GetTargetQty() <= 0 {
		return fmt.Errorf("target_qty must be positive")
	}
	switch types.ParticipationRate(c.GetParticipation()) {
	case types.ParticipationLow, types.ParticipationMedium, types.ParticipationHigh:
	default:
		return fmt.Errorf("invalid participation %q", c.GetParticipation())
	}
	return nil
}
