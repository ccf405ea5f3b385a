package exchange

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/types"
)

// BatchHandler consumes one upstream bar batch
type BatchHandler func(bars []*types.Bar)

// Feed produces per-minute bar batches and pushes them to a handler
type Feed interface {
	Run(ctx context.Context, h BatchHandler) error
}

// SimulatedFeed generates a synthetic per-minute feed for a fixed symbol set.
// Prices follow a bounded random walk around each symbol's base price. It is
// the upstream for development and for exchange workers that have no live
// venue behind them.
type SimulatedFeed struct {
	symbols  []string
	currency string
	interval time.Duration

	rng  *rand.Rand
	last map[string]decimal.Decimal
}

// NewSimulatedFeed creates a feed for the given symbols. Interval defaults
// to one minute; seed 0 picks a time-based seed.
func NewSimulatedFeed(symbols []string, currency string, interval time.Duration, seed int64) *SimulatedFeed {
	if interval <= 0 {
		interval = time.Minute
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &SimulatedFeed{
		symbols:  symbols,
		currency: currency,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		last:     make(map[string]decimal.Decimal, len(symbols)),
	}
	for i, s := range symbols {
		f.last[s] = decimal.NewFromInt(int64(50 + 25*i)).Add(decimal.NewFromFloat(f.rng.Float64() * 10).Round(2))
	}
	return f
}

// Run emits one batch per interval until ctx is cancelled
func (f *SimulatedFeed) Run(ctx context.Context, h BatchHandler) error {
	logger := log.WithComponent("feed")
	logger.Info().Int("symbols", len(f.symbols)).Dur("interval", f.interval).Msg("simulated feed started")

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			h(f.Generate(now.UTC()))
		case <-ctx.Done():
			logger.Info().Msg("simulated feed stopped")
			return ctx.Err()
		}
	}
}

// Generate produces one bar per symbol for the minute containing ts
func (f *SimulatedFeed) Generate(ts time.Time) []*types.Bar {
	minute := ts.UTC().Truncate(time.Minute)
	bars := make([]*types.Bar, 0, len(f.symbols))

	for _, sym := range f.symbols {
		open := f.last[sym]
		// Walk at most ±0.5% per minute, two decimal places.
		drift := decimal.NewFromFloat((f.rng.Float64() - 0.5) * 0.01)
		cls := open.Add(open.Mul(drift)).Round(2)
		if cls.LessThanOrEqual(decimal.Zero) {
			cls = decimal.NewFromFloat(0.01)
		}
		high := decimal.Max(open, cls).Add(decimal.NewFromFloat(f.rng.Float64() * 0.05).Round(2))
		low := decimal.Min(open, cls).Sub(decimal.NewFromFloat(f.rng.Float64() * 0.05).Round(2))
		vwap := open.Add(cls).Div(decimal.NewFromInt(2)).Round(4)
		volume := int64(1000 + f.rng.Intn(9000))
		trades := int64(10 + f.rng.Intn(190))

		f.last[sym] = cls
		bars = append(bars, &types.Bar{
			Timestamp:  minute,
			Symbol:     sym,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      cls,
			VWAP:       vwap,
			VWAS:       vwap,
			VWAV:       decimal.NewFromInt(volume),
			Volume:     volume,
			TradeCount: trades,
			Currency:   f.currency,
		})
	}
	return bars
}
