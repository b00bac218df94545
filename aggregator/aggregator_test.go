package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
)

const fiveMinMs = 300_000

// fiveMin builds the i-th final 5m candle of the hour starting at base.
func fiveMin(symbol string, base int64, i int, o, h, l, c, v float64) types.Candle {
	open := base + int64(i)*fiveMinMs
	return types.Candle{
		Symbol:    symbol,
		Interval:  "5m",
		OpenTime:  open,
		CloseTime: open + fiveMinMs - 1,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    v,
	}
}

func TestTwelveFiveMinuteCandlesMakeOneHour(t *testing.T) {
	agg, err := New("5m", []string{"1h"}, logger.NewNop())
	require.NoError(t, err)

	var base int64 = 0 // 00:00
	var emitted []types.Candle
	for i := 0; i < 12; i++ {
		o := float64(10 + i)
		c := fiveMin("BTCUSDT", base, i, o, o+2, o-1, o+1, 100)
		emitted = append(emitted, agg.Process(c)...)
	}

	require.Len(t, emitted, 1)
	hour := emitted[0]
	assert.Equal(t, "1h", hour.Interval)
	assert.Equal(t, int64(0), hour.OpenTime)
	assert.Equal(t, int64(3_599_999), hour.CloseTime)
	assert.Equal(t, 10.0, hour.Open)
	assert.Equal(t, 23.0, hour.High)
	assert.Equal(t, 9.0, hour.Low)
	assert.Equal(t, 22.0, hour.Close)
	assert.Equal(t, 1200.0, hour.Volume)

	// duration and alignment invariants
	assert.Equal(t, int64(3_600_000), hour.CloseTime-hour.OpenTime+1)
	assert.Zero(t, hour.OpenTime%3_600_000)
}

func TestFifteenMinuteRollup(t *testing.T) {
	agg, err := New("5m", []string{"15m"}, logger.NewNop())
	require.NoError(t, err)

	var emitted []types.Candle
	for i := 0; i < 6; i++ {
		emitted = append(emitted, agg.Process(
			fiveMin("ETHUSDT", 0, i, 100, 101, 99, 100.5, 10))...)
	}

	require.Len(t, emitted, 2)
	assert.Equal(t, int64(0), emitted[0].OpenTime)
	assert.Equal(t, int64(900_000), emitted[1].OpenTime)
	for _, c := range emitted {
		assert.Equal(t, int64(900_000), c.CloseTime-c.OpenTime+1)
		assert.Equal(t, 30.0, c.Volume)
	}
}

func TestBoundaryCandleFinalizesPriorPeriod(t *testing.T) {
	agg, err := New("5m", []string{"1h"}, logger.NewNop())
	require.NoError(t, err)

	// Feed only 11 of 12 candles for hour zero, then the first candle of
	// hour one: the incomplete hour-zero aggregate finalizes at that point.
	var emitted []types.Candle
	for i := 0; i < 11; i++ {
		emitted = append(emitted, agg.Process(fiveMin("BTCUSDT", 0, i, 10, 12, 9, 11, 100))...)
	}
	require.Empty(t, emitted)

	emitted = agg.Process(fiveMin("BTCUSDT", 3_600_000, 0, 20, 22, 19, 21, 50))
	require.Len(t, emitted, 1)
	assert.Equal(t, int64(0), emitted[0].OpenTime)
	assert.Equal(t, 1100.0, emitted[0].Volume)
}

func TestMultipleTargets(t *testing.T) {
	agg, err := New("5m", []string{"15m", "1h", "4h"}, logger.NewNop())
	require.NoError(t, err)

	var emitted []types.Candle
	for i := 0; i < 48; i++ { // 4 hours of 5m candles
		emitted = append(emitted, agg.Process(fiveMin("SOLUSDT", 0, i, 1, 2, 0.5, 1.5, 1))...)
	}

	counts := map[string]int{}
	for _, c := range emitted {
		counts[c.Interval]++
	}
	assert.Equal(t, 16, counts["15m"])
	assert.Equal(t, 4, counts["1h"])
	assert.Equal(t, 1, counts["4h"])
}

func TestSymbolsAggregateIndependently(t *testing.T) {
	agg, err := New("5m", []string{"15m"}, logger.NewNop())
	require.NoError(t, err)

	var emitted []types.Candle
	for i := 0; i < 3; i++ {
		emitted = append(emitted, agg.Process(fiveMin("BTCUSDT", 0, i, 10, 11, 9, 10, 1))...)
		emitted = append(emitted, agg.Process(fiveMin("ETHUSDT", 0, i, 20, 21, 19, 20, 2))...)
	}

	require.Len(t, emitted, 2)
	bySymbol := map[string]types.Candle{}
	for _, c := range emitted {
		bySymbol[c.Symbol] = c
	}
	assert.Equal(t, 3.0, bySymbol["BTCUSDT"].Volume)
	assert.Equal(t, 6.0, bySymbol["ETHUSDT"].Volume)
}

func TestRejectsUnknownIntervals(t *testing.T) {
	_, err := New("7m", []string{"1h"}, logger.NewNop())
	require.Error(t, err)

	_, err = New("5m", []string{"7m"}, logger.NewNop())
	require.Error(t, err)
}

func TestWrongSourceIntervalIgnored(t *testing.T) {
	agg, err := New("5m", []string{"1h"}, logger.NewNop())
	require.NoError(t, err)

	c := fiveMin("BTCUSDT", 0, 0, 1, 2, 0.5, 1, 1)
	c.Interval = "1m"
	assert.Empty(t, agg.Process(c))
}
