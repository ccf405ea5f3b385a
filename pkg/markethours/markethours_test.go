package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrade/tradefleet/pkg/types"
)

func nyse() *types.Exchange {
	return &types.Exchange{
		ID:            "NYSE",
		Timezone:      "America/New_York",
		PreOpenTime:   "04:00",
		PostCloseTime: "16:00",
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestShouldBeRunning_Boundaries(t *testing.T) {
	ex := nyse()

	// Monday 2025-11-03: EST (UTC-5). Window opens 03:55 local = 08:55 UTC,
	// closes 16:05 local = 21:05 UTC.
	tests := []struct {
		name string
		now  string
		want bool
	}{
		{"one second before open margin", "2025-11-03T08:54:59Z", false},
		{"exactly at open margin", "2025-11-03T08:55:00Z", true},
		{"mid-session", "2025-11-03T15:00:00Z", true},
		{"exactly at close margin", "2025-11-03T21:05:00Z", true},
		{"one second past close margin", "2025-11-03T21:05:01Z", false},
		{"middle of the night", "2025-11-03T02:00:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldBeRunning(ex, mustParse(t, tt.now))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldBeRunning_Weekend(t *testing.T) {
	ex := nyse()

	// Saturday and Sunday local dates yield an empty window.
	for _, now := range []string{
		"2025-11-01T15:00:00Z", // Saturday
		"2025-11-02T15:00:00Z", // Sunday
	} {
		got, err := ShouldBeRunning(ex, mustParse(t, now))
		require.NoError(t, err)
		assert.False(t, got, "expected closed at %s", now)
	}
}

func TestShouldBeRunning_LocalWeekendNotUTC(t *testing.T) {
	// Tokyo is UTC+9: Friday 23:00 UTC is already Saturday 08:00 local.
	ex := &types.Exchange{
		ID:            "TSE",
		Timezone:      "Asia/Tokyo",
		PreOpenTime:   "08:00",
		PostCloseTime: "15:00",
	}

	got, err := ShouldBeRunning(ex, mustParse(t, "2025-11-07T23:00:00Z"))
	require.NoError(t, err)
	assert.False(t, got, "Saturday in local timezone must be closed")
}

func TestForExchange_WindowInUTC(t *testing.T) {
	w, err := ForExchange(nyse(), mustParse(t, "2025-11-03T12:00:00Z"))
	require.NoError(t, err)
	require.False(t, w.Empty)

	assert.Equal(t, mustParse(t, "2025-11-03T08:55:00Z"), w.Start)
	assert.Equal(t, mustParse(t, "2025-11-03T21:05:00Z"), w.End)
	assert.Equal(t, time.UTC, w.Start.Location())
}

func TestForExchange_DSTTransition(t *testing.T) {
	// Friday 2025-10-31 is still EDT (UTC-4): 03:55 local = 07:55 UTC.
	w, err := ForExchange(nyse(), mustParse(t, "2025-10-31T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2025-10-31T07:55:00Z"), w.Start)
}

func TestForExchange_Errors(t *testing.T) {
	tests := []struct {
		name string
		ex   *types.Exchange
	}{
		{"bad timezone", &types.Exchange{Timezone: "Mars/Olympus", PreOpenTime: "04:00", PostCloseTime: "16:00"}},
		{"bad pre-open", &types.Exchange{Timezone: "UTC", PreOpenTime: "4am", PostCloseTime: "16:00"}},
		{"bad post-close", &types.Exchange{Timezone: "UTC", PreOpenTime: "04:00", PostCloseTime: "25:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ForExchange(tt.ex, time.Now().UTC())
			assert.Error(t, err)
		})
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{
		Start: mustParse(t, "2025-11-03T08:55:00Z"),
		End:   mustParse(t, "2025-11-03T21:05:00Z"),
	}
	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.Start.Add(-time.Second)))
	assert.False(t, w.Contains(w.End.Add(time.Second)))

	empty := Window{Empty: true}
	assert.False(t, empty.Contains(w.Start))
}
