package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectKline(t *testing.T) {
	frame := []byte(`{
		"e": "kline", "E": 1700000299500, "s": "BTCUSDT",
		"k": {
			"t": 1700000100000, "T": 1700000399999,
			"s": "BTCUSDT", "i": "5m",
			"o": "35000.10", "c": "35120.50", "h": "35200.00", "l": "34990.00",
			"v": "812.345", "x": true
		}
	}`)

	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)

	k, ok := events[0].(KlineEvent)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", k.Symbol)
	assert.Equal(t, "5m", k.Interval)
	assert.True(t, k.IsFinal)
	assert.Equal(t, 35000.10, k.Candle.Open)
	assert.Equal(t, 35120.50, k.Candle.Close)
	assert.Equal(t, int64(1700000100000), k.Candle.OpenTime)
	assert.Equal(t, int64(1700000399999), k.Candle.CloseTime)
	assert.Equal(t, 812.345, k.Candle.Volume)
}

// The exchange sends every documented field, including uppercase keys
// like "L" and "V" that share a letter with the ones we keep. The parser
// must not let those case-fold onto the lowercase fields.
func TestParseFullKlineFrame(t *testing.T) {
	frame := []byte(`{
		"e": "kline", "E": 1700000299500, "s": "BTCUSDT",
		"k": {
			"t": 1700000100000, "T": 1700000399999,
			"s": "BTCUSDT", "i": "5m",
			"f": 100, "L": 200,
			"o": "35000.10", "c": "35120.50", "h": "35200.00", "l": "34990.00",
			"v": "812.345", "n": 500, "x": true,
			"q": "28500000.00", "V": "400.123", "Q": "14000000.00", "B": "0"
		}
	}`)

	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)

	k := events[0].(KlineEvent)
	assert.Equal(t, "BTCUSDT", k.Symbol)
	assert.Equal(t, int64(1700000299500), k.EventTimeMs)
	assert.Equal(t, 34990.00, k.Candle.Low, `"L" must not clobber "l"`)
	assert.Equal(t, 812.345, k.Candle.Volume, `"V" must not clobber "v"`)
}

func TestParseFullTickerFrame(t *testing.T) {
	frame := []byte(`{
		"e": "24hrTicker", "E": 1700000299500, "s": "BTCUSDT",
		"p": "1160.40", "P": "3.42", "w": "34800.11",
		"c": "35120.50", "Q": "0.25", "o": "33960.10",
		"h": "35500", "l": "33900", "v": "125000", "q": "4350000000",
		"O": 1699913899500, "C": 1700000299500, "F": 100, "L": 18150, "n": 18050
	}`)

	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)

	tk := events[0].(TickerEvent)
	assert.Equal(t, 35120.50, tk.LastPrice, `"C" must not clobber "c"`)
	assert.Equal(t, 3.42, tk.PriceChangePct, `"p" must not clobber "P"`)
	assert.Equal(t, 33900.0, tk.LowPrice, `"L" must not clobber "l"`)
	assert.Equal(t, int64(1700000299500), tk.EventTimeMs)
}

func TestParseFullMarkPriceFrame(t *testing.T) {
	frame := []byte(`{
		"e": "markPriceUpdate", "E": 1700000299500, "s": "BTCUSDT",
		"p": "35000.5", "i": "34998.9", "P": "35010.2",
		"r": "0.0001", "T": 1700028800000
	}`)

	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)

	m := events[0].(MarkPriceEvent)
	assert.Equal(t, 35000.5, m.MarkPrice, `"P" (settle estimate) must not clobber "p"`)
	assert.Equal(t, 0.0001, m.FundingRate)
	assert.Equal(t, int64(1700028800000), m.NextFundingMs)
}

func TestParseEnvelopeKline(t *testing.T) {
	frame := []byte(`{
		"stream": "ethusdt@kline_5m",
		"data": {
			"e": "kline", "E": 1, "s": "ETHUSDT",
			"k": {"t": 0, "T": 299999, "s": "ETHUSDT", "i": "5m",
			      "o": "1", "c": "2", "h": "3", "l": "0.5", "v": "10", "x": false}
		}
	}`)

	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)

	k, ok := events[0].(KlineEvent)
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", k.Symbol)
	assert.False(t, k.IsFinal)
}

func TestParseMarkPriceArrayFansOut(t *testing.T) {
	frame := []byte(`{
		"stream": "!markPrice@arr",
		"data": [
			{"e": "markPriceUpdate", "E": 1, "s": "BTCUSDT", "p": "35000.5", "r": "0.0001", "T": 1700028800000},
			{"e": "markPriceUpdate", "E": 1, "s": "ETHUSDT", "p": "1850.25", "r": "-0.0002", "T": 1700028800000}
		]
	}`)

	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 2)

	btc := events[0].(MarkPriceEvent)
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, 35000.5, btc.MarkPrice)
	assert.Equal(t, 0.0001, btc.FundingRate)

	eth := events[1].(MarkPriceEvent)
	assert.Equal(t, "ETHUSDT", eth.Symbol)
	assert.Equal(t, -0.0002, eth.FundingRate)
}

func TestParseTopLevelArray(t *testing.T) {
	frame := []byte(`[
		{"e": "markPriceUpdate", "E": 1, "s": "BTCUSDT", "p": "1", "r": "0", "T": 0}
	]`)
	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "markPrice", events[0].EventType())
}

func TestParseTicker(t *testing.T) {
	frame := []byte(`{
		"e": "24hrTicker", "E": 1, "s": "BTCUSDT",
		"c": "35120.50", "P": "3.42", "h": "35500", "l": "33900", "v": "125000"
	}`)
	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)

	tk := events[0].(TickerEvent)
	assert.Equal(t, 35120.50, tk.LastPrice)
	assert.Equal(t, 3.42, tk.PriceChangePct)
	assert.Equal(t, 35500.0, tk.HighPrice)
}

func TestParseDepth(t *testing.T) {
	frame := []byte(`{
		"e": "depthUpdate", "E": 1, "s": "BTCUSDT", "U": 100, "u": 105,
		"b": [["35000.0", "1.5"], ["34999.5", "2.0"]],
		"a": [["35001.0", "0.7"]]
	}`)
	events, err := ParseFrame(frame)
	require.NoError(t, err)

	d := events[0].(DepthEvent)
	require.Len(t, d.Bids, 2)
	require.Len(t, d.Asks, 1)
	assert.Equal(t, 35000.0, d.Bids[0].Price)
	assert.Equal(t, 1.5, d.Bids[0].Quantity)
	assert.Equal(t, int64(100), d.FirstUpdateID)
	assert.Equal(t, int64(105), d.FinalUpdateID)
}

func TestParseUnknownEventSkipped(t *testing.T) {
	frame := []byte(`{"e": "forceOrder", "s": "BTCUSDT"}`)
	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "skipped", events[0].EventType())
}

func TestParseSubscriptionAckSkipped(t *testing.T) {
	frame := []byte(`{"result": null, "id": 1}`)
	events, err := ParseFrame(frame)
	require.NoError(t, err)
	require.Len(t, events, 1)
	sk := events[0].(SkippedEvent)
	assert.Equal(t, "subscription ack", sk.Reason)
}

func TestParseGarbageFrameErrors(t *testing.T) {
	_, err := ParseFrame([]byte(`not json`))
	require.Error(t, err)
}

func TestDiffStreams(t *testing.T) {
	added, removed := diffStreams(
		[]string{"btcusdt@kline_5m", "ethusdt@kline_5m"},
		[]string{"btcusdt@kline_5m", "solusdt@kline_5m"},
	)
	assert.Equal(t, []string{"solusdt@kline_5m"}, added)
	assert.Equal(t, []string{"ethusdt@kline_5m"}, removed)
}
