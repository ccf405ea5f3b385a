package pb

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketDataUpdate_WireRoundTrip(t *testing.T) {
	in := &MarketDataUpdate{
		Timestamp: 1762180200000,
		Data: []*SymbolData{
			{
				Symbol:     "AAPL",
				Open:       "230.1",
				High:       "231.4",
				Low:        "229.95",
				Close:      "231.05",
				Volume:     4821,
				TradeCount: 117,
				Vwap:       "230.62",
				Currency:   "USD",
			},
			{Symbol: "MSFT", Close: "420.55", Currency: "USD"},
		},
	}

	raw, err := proto.Marshal(in)
	require.NoError(t, err)

	var out MarketDataUpdate
	require.NoError(t, proto.Unmarshal(raw, &out))

	assert.Equal(t, in.GetTimestamp(), out.GetTimestamp())
	require.Len(t, out.GetData(), 2)
	assert.Equal(t, "AAPL", out.GetData()[0].GetSymbol())
	assert.Equal(t, "231.05", out.GetData()[0].GetClose())
	assert.Equal(t, int64(4821), out.GetData()[0].GetVolume())
	assert.Equal(t, "230.62", out.GetData()[0].GetVwap())
	assert.Equal(t, "MSFT", out.GetData()[1].GetSymbol())
}

func TestBatchConvictionRequest_WireRoundTrip(t *testing.T) {
	in := &BatchConvictionRequest{
		SessionId: "sess-1",
		Convictions: []*Conviction{
			{ConvictionId: "c1", Symbol: "AAPL", Side: "BUY", TargetQty: 1000, Participation: "MEDIUM"},
		},
	}

	raw, err := proto.Marshal(in)
	require.NoError(t, err)

	var out BatchConvictionRequest
	require.NoError(t, proto.Unmarshal(raw, &out))

	assert.Equal(t, "sess-1", out.GetSessionId())
	require.Len(t, out.GetConvictions(), 1)
	assert.Equal(t, int64(1000), out.GetConvictions()[0].GetTargetQty())
}

func TestGetters_NilSafe(t *testing.T) {
	var u *MarketDataUpdate
	assert.Zero(t, u.GetTimestamp())
	assert.Nil(t, u.GetData())

	var d *SymbolData
	assert.Empty(t, d.GetSymbol())
}
