package exchange

import (
	"sync"
	"time"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

const (
	// DefaultSubscriberBuffer is the per-subscriber channel depth
	DefaultSubscriberBuffer = 16

	// DefaultMaxConsecutiveDrops evicts a subscriber after this many
	// back-to-back failed sends
	DefaultMaxConsecutiveDrops = 3
)

// Subscriber is one registered consumer of the multiplexed bar feed.
// Updates is closed when the subscriber is evicted or unsubscribed.
type Subscriber struct {
	ID      string
	Updates <-chan *pb.MarketDataUpdate

	symbols map[string]bool // nil = all symbols
	ch      chan *pb.MarketDataUpdate
	drops   int
}

func (s *Subscriber) wants(symbol string) bool {
	if s.symbols == nil {
		return true
	}
	return s.symbols[symbol]
}

// MuxConfig holds multiplexer tuning knobs
type MuxConfig struct {
	SubscriberBuffer    int
	MaxConsecutiveDrops int
}

// Mux fans upstream bar batches out to N subscribers. Registration,
// broadcast, and eviction all run under one mutex; the per-subscriber
// buffered channel keeps a slow consumer from blocking the batch path.
type Mux struct {
	store storage.Store
	cfg   MuxConfig

	mu   sync.Mutex
	subs map[string]*Subscriber
}

// NewMux creates a multiplexer backed by the given store
func NewMux(store storage.Store, cfg MuxConfig) *Mux {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if cfg.MaxConsecutiveDrops <= 0 {
		cfg.MaxConsecutiveDrops = DefaultMaxConsecutiveDrops
	}
	return &Mux{
		store: store,
		cfg:   cfg,
		subs:  make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber. An empty symbols slice means all symbols.
// When includeHistory is set, the latest persisted bar per requested symbol
// is delivered as the first update, before any live batch, so a reconnecting
// session never starts from a blank book.
//
// Subscribing with an id that is already registered replaces the previous
// registration; the old channel is closed.
func (m *Mux) Subscribe(id string, symbols []string, includeHistory bool) (*Subscriber, error) {
	sub := &Subscriber{
		ID: id,
		ch: make(chan *pb.MarketDataUpdate, m.cfg.SubscriberBuffer),
	}
	sub.Updates = sub.ch
	if len(symbols) > 0 {
		sub.symbols = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			sub.symbols[s] = true
		}
	}

	var snapshot *pb.MarketDataUpdate
	if includeHistory {
		bars, err := m.store.LatestBars(symbols)
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 {
			snapshot = envelope(bars, sub)
		}
	}

	m.mu.Lock()
	if old, ok := m.subs[id]; ok {
		close(old.ch)
	}
	m.subs[id] = sub
	metrics.SubscribersCount.Set(float64(len(m.subs)))
	if snapshot != nil {
		// Buffer is empty on a fresh channel, so the snapshot always lands
		// ahead of live traffic.
		sub.ch <- snapshot
	}
	m.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel
func (m *Mux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(sub.ch)
		metrics.SubscribersCount.Set(float64(len(m.subs)))
	}
}

// SubscriberCount returns the number of registered subscribers
func (m *Mux) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// HandleBatch processes one upstream bar batch: timestamps are floored to
// the minute, the batch is persisted, and each subscriber receives at most
// one envelope holding the bars its filter admits. Persistence failures are
// counted and logged but never block the broadcast.
func (m *Mux) HandleBatch(bars []*types.Bar) {
	if len(bars) == 0 {
		return
	}
	metrics.BatchesTotal.Inc()

	for _, b := range bars {
		b.Timestamp = b.Timestamp.UTC().Truncate(time.Minute)
	}

	if err := m.store.UpsertBars(bars); err != nil {
		metrics.BarPersistErrors.Inc()
		log.WithComponent("mux").Error().Err(err).Int("bars", len(bars)).Msg("failed to persist bar batch")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var dead []string
	for id, sub := range m.subs {
		update := envelope(bars, sub)
		if update == nil {
			continue
		}
		select {
		case sub.ch <- update:
			sub.drops = 0
			metrics.UpdatesSentTotal.Inc()
		default:
			sub.drops++
			metrics.UpdatesDroppedTotal.Inc()
			if sub.drops >= m.cfg.MaxConsecutiveDrops {
				dead = append(dead, id)
			}
		}
	}

	for _, id := range dead {
		sub := m.subs[id]
		delete(m.subs, id)
		close(sub.ch)
		metrics.SubscribersEvicted.Inc()
		log.WithComponent("mux").Warn().Str("subscriber_id", id).Int("drops", sub.drops).Msg("evicted slow subscriber")
	}
	if len(dead) > 0 {
		metrics.SubscribersCount.Set(float64(len(m.subs)))
	}
}

// Close evicts every subscriber, closing their channels
func (m *Mux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs {
		delete(m.subs, id)
		close(sub.ch)
	}
	metrics.SubscribersCount.Set(0)
}

// envelope builds the per-subscriber update, or nil when the filter admits
// no bars. The envelope timestamp is the newest bar's minute.
func envelope(bars []*types.Bar, sub *Subscriber) *pb.MarketDataUpdate {
	var data []*pb.SymbolData
	var latest time.Time
	for _, b := range bars {
		if !sub.wants(b.Symbol) {
			continue
		}
		data = append(data, barToSymbolData(b))
		if b.Timestamp.After(latest) {
			latest = b.Timestamp
		}
	}
	if len(data) == 0 {
		return nil
	}
	return &pb.MarketDataUpdate{
		Timestamp: latest.UnixMilli(),
		Data:      data,
	}
}

func barToSymbolData(b *types.Bar) *pb.SymbolData {
	return &pb.SymbolData{
		Symbol:     b.Symbol,
		Open:       b.Open.String(),
		High:       b.High.String(),
		Low:        b.Low.String(),
		Close:      b.Close.String(),
		Volume:     b.Volume,
		TradeCount: b.TradeCount,
		Vwap:       b.VWAP.String(),
		Currency:   b.Currency,
	}
}
