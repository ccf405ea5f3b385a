package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentrade/tradefleet/pkg/types"
)

// WorkerSpec is the deterministic deployment template for one exchange
// worker. It is a pure function of the exchange record; the controller keeps
// no hidden state about running workers.
type WorkerSpec struct {
	Name        string
	ExchangeID  string
	Image       string
	Env         []string
	GRPCPort    int
	MetricsPort int
	CPULimit    float64 // cores
	MemoryLimit int64   // bytes
}

// Ops is the narrow container-orchestration interface the lifecycle
// controller consumes. Start and Stop are idempotent: starting a worker that
// already exists and stopping one that is gone are both success.
type Ops interface {
	// Start launches a worker from the spec
	Start(ctx context.Context, spec WorkerSpec) error

	// Stop stops and removes the worker for the exchange id
	Stop(ctx context.Context, exchangeID string) error

	// List returns the exchange ids with a running worker
	List(ctx context.Context) (map[string]bool, error)

	// Healthy reports whether the worker passes its readiness probe
	Healthy(ctx context.Context, exchangeID string) bool
}

// WorkerName derives the deployment name for an exchange
func WorkerName(exchangeID string) string {
	return "exchange-service-" + strings.ToLower(exchangeID)
}

// SpecForExchange builds the worker spec for an exchange record
func SpecForExchange(ex *types.Exchange) WorkerSpec {
	grpcPort := ex.GRPCPort
	if grpcPort == 0 {
		grpcPort = 50055
	}
	return WorkerSpec{
		Name:        WorkerName(ex.ID),
		ExchangeID:  ex.ID,
		Image:       ex.Image,
		GRPCPort:    grpcPort,
		MetricsPort: 9090,
		CPULimit:    1.0,
		MemoryLimit: 512 << 20,
		Env: []string{
			"EXCHANGE_ID=" + ex.ID,
			fmt.Sprintf("GRPC_PORT=%d", grpcPort),
			"METRICS_PORT=9090",
			"EXCHANGE_TIMEZONE=" + ex.Timezone,
		},
	}
}
