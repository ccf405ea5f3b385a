package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

// mondayOpen is inside NYSE market hours (Monday 10:00 EST = 15:00 UTC)
var mondayOpen = time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC)

// mondayNight is outside every window below
var mondayNight = time.Date(2025, 11, 3, 2, 0, 0, 0, time.UTC)

func seedExchange(t *testing.T, store storage.Store, id, tz, open, close string) {
	t.Helper()
	require.NoError(t, store.CreateExchange(&types.Exchange{
		ID:            id,
		Timezone:      tz,
		PreOpenTime:   open,
		PostCloseTime: close,
		Image:         "docker.io/opentrade/exchange-service:latest",
		GRPCPort:      50055,
	}))
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func TestReconcile_StartsDesiredWorkers(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	seedExchange(t, store, "NYSE", "America/New_York", "04:00", "16:00")
	seedExchange(t, store, "TSE", "Asia/Tokyo", "08:00", "15:00")

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayOpen)})
	require.NoError(t, ctrl.Reconcile(context.Background()))

	// 15:00 UTC Monday: NYSE open, Tokyo closed (already midnight Tuesday).
	running, err := ops.List(context.Background())
	require.NoError(t, err)
	assert.True(t, running["NYSE"])
	assert.False(t, running["TSE"])
	assert.Equal(t, 1, ops.RunningCount())
}

func TestReconcile_StopsWorkersOutsideWindow(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	seedExchange(t, store, "NYSE", "America/New_York", "04:00", "16:00")
	require.NoError(t, ops.Start(context.Background(), cluster.WorkerSpec{ExchangeID: "NYSE"}))

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayNight)})
	require.NoError(t, ctrl.Reconcile(context.Background()))

	assert.Equal(t, 0, ops.RunningCount())
	assert.Equal(t, 1, ops.Stops)
}

func TestReconcile_StopsOrphanedWorkers(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	// Worker running with no exchange record behind it.
	require.NoError(t, ops.Start(context.Background(), cluster.WorkerSpec{ExchangeID: "GHOST"}))

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayOpen)})
	require.NoError(t, ctrl.Reconcile(context.Background()))

	assert.Equal(t, 0, ops.RunningCount())
}

func TestReconcile_Idempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	seedExchange(t, store, "NYSE", "America/New_York", "04:00", "16:00")

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayOpen)})
	require.NoError(t, ctrl.Reconcile(context.Background()))
	require.NoError(t, ctrl.Reconcile(context.Background()))

	// The second pass observes the worker and issues nothing.
	assert.Equal(t, 1, ops.Starts)
	assert.Equal(t, 1, ops.RunningCount())
	assert.Equal(t, 0, ops.Stops)
}

func TestReconcile_BadTimezoneSkipsExchange(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	seedExchange(t, store, "NYSE", "America/New_York", "04:00", "16:00")
	seedExchange(t, store, "BROKEN", "Mars/Olympus", "04:00", "16:00")

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayOpen)})
	require.NoError(t, ctrl.Reconcile(context.Background()))

	// The malformed exchange is skipped; the healthy one still starts.
	running, err := ops.List(context.Background())
	require.NoError(t, err)
	assert.True(t, running["NYSE"])
	assert.Equal(t, 1, ops.RunningCount())
}

func TestReconcile_StartErrorDoesNotAbortTick(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	ops.StartErr = errors.New("image pull failed")
	seedExchange(t, store, "NYSE", "America/New_York", "04:00", "16:00")

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayOpen)})
	assert.NoError(t, ctrl.Reconcile(context.Background()))
	assert.Equal(t, 0, ops.RunningCount())

	// Next tick retries from scratch once the failure clears.
	ops.StartErr = nil
	require.NoError(t, ctrl.Reconcile(context.Background()))
	assert.Equal(t, 1, ops.RunningCount())
}

func TestReconcile_StoreFailureAbortsTick(t *testing.T) {
	store := &failingStore{Store: storage.NewMemoryStore(), listErr: errors.New("connection refused")}
	ops := cluster.NewFakeOps()

	ctrl := NewController(store, ops, Config{Clock: fixedClock(mondayOpen)})
	assert.Error(t, ctrl.Reconcile(context.Background()))
	assert.Equal(t, 0, ops.Starts)
}

func TestReconcile_StartGateDefersStarts(t *testing.T) {
	store := storage.NewMemoryStore()
	ops := cluster.NewFakeOps()
	seedExchange(t, store, "NYSE", "America/New_York", "04:00", "16:00")

	gateOpen := false
	ctrl := NewController(store, ops, Config{
		Clock:     fixedClock(mondayOpen),
		StartGate: func(context.Context) bool { return gateOpen },
	})

	require.NoError(t, ctrl.Reconcile(context.Background()))
	assert.Equal(t, 0, ops.RunningCount())

	gateOpen = true
	require.NoError(t, ctrl.Reconcile(context.Background()))
	assert.Equal(t, 1, ops.RunningCount())
}

func TestShouldBeRunning_Delegates(t *testing.T) {
	ctrl := NewController(storage.NewMemoryStore(), cluster.NewFakeOps(), Config{})
	ex := &types.Exchange{Timezone: "America/New_York", PreOpenTime: "04:00", PostCloseTime: "16:00"}

	run, err := ctrl.ShouldBeRunning(ex, mondayOpen)
	require.NoError(t, err)
	assert.True(t, run)
}

// failingStore wraps a Store and fails ListExchanges
type failingStore struct {
	storage.Store
	listErr error
}

func (f *failingStore) ListExchanges() ([]*types.Exchange, error) {
	return nil, f.listErr
}
