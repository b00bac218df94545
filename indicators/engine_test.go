package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
)

func candleAt(i int, o, h, l, c, v float64) types.Candle {
	open := int64(i) * 300_000
	return types.Candle{
		Symbol:    "BTCUSDT",
		Interval:  "5m",
		OpenTime:  open,
		CloseTime: open + 299_999,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    v,
	}
}

func flatCandle(i int, price, volume float64) types.Candle {
	return candleAt(i, price, price, price, price, volume)
}

func TestEMASeedsFromSimpleMean(t *testing.T) {
	ema := NewEMA(3)

	_, ok := ema.Value()
	assert.False(t, ok)

	ema.Update(10)
	ema.Update(20)
	_, ok = ema.Value()
	assert.False(t, ok, "not seeded before period inputs")

	ema.Update(30)
	v, ok := ema.Value()
	require.True(t, ok)
	assert.Equal(t, 20.0, v, "seed is the simple mean of the first N")

	// standard multiplier update: k = 2/(3+1) = 0.5
	ema.Update(40)
	v, _ = ema.Value()
	assert.Equal(t, 30.0, v)
}

func TestATRWilderSmoothing(t *testing.T) {
	atr := NewATR(2)

	// candle 1: TR = high-low = 10
	atr.Update(110, 100, 105)
	_, ok := atr.Value()
	assert.False(t, ok)

	// candle 2: TR = max(10, |115-105|, |105-105|) = 10; seed = (10+10)/2
	atr.Update(115, 105, 110)
	v, ok := atr.Value()
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	// candle 3: TR = max(20, |130-110|, |110-110|) = 20
	// Wilder: (10*1 + 20)/2 = 15
	atr.Update(130, 110, 120)
	v, _ = atr.Value()
	assert.Equal(t, 15.0, v)
}

func TestVolumeBaselineLagsOneCandle(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")

	// 20 candles with volume 100, then one spike: the baseline at the
	// spike must still be 100 (it excludes the spike itself).
	for i := 0; i < 20; i++ {
		e.Update(flatCandle(i, 50, 100))
	}
	e.Update(flatCandle(20, 50, 5000))

	snap := e.Snapshot()
	require.True(t, snap.VolumeBaselineSet)
	assert.Equal(t, 100.0, snap.VolumeBaseline)
}

func TestSwingDetection(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")

	// Build a single peak at index 7 inside an otherwise flat series.
	for i := 0; i < 20; i++ {
		h, l := 100.0, 99.0
		if i == 7 {
			h, l = 110.0, 100.0
		}
		e.Update(candleAt(i, 99.5, h, l, 99.5, 10))
	}

	snap := e.Snapshot()
	require.Len(t, snap.SwingHighs, 1)
	assert.Equal(t, 110.0, snap.SwingHighs[0].Price)
	assert.Equal(t, int64(7)*300_000, snap.SwingHighs[0].OpenTime)
}

func TestSwingRequiresStrictDominance(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")

	// Two equal highs near each other: neither strictly exceeds the other,
	// so neither is a swing high.
	for i := 0; i < 20; i++ {
		h := 100.0
		if i == 7 || i == 9 {
			h = 110.0
		}
		e.Update(candleAt(i, 99, h, 98, 99, 10))
	}

	assert.Empty(t, e.Snapshot().SwingHighs)
}

func TestWindowReturnsChronologicalCopy(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")
	for i := 0; i < 10; i++ {
		e.Update(flatCandle(i, float64(i), 1))
	}

	w := e.Window(3)
	require.Len(t, w, 3)
	assert.Equal(t, 7.0, w[0].Close)
	assert.Equal(t, 9.0, w[2].Close)

	w[0].Close = -1
	assert.Equal(t, 7.0, e.Window(3)[0].Close, "window must be a copy")
}

func TestRingEviction(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")
	for i := 0; i < WindowCap+50; i++ {
		e.Update(flatCandle(i, float64(i), 1))
	}

	w := e.Window(WindowCap + 10)
	require.Len(t, w, WindowCap)
	assert.Equal(t, float64(50), w[0].Close, "oldest candles evicted")
	assert.Equal(t, int64(WindowCap+50), e.Snapshot().CandleCount)
}

func TestDuplicateAndOutOfOrderCandlesIgnored(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")
	e.Update(flatCandle(0, 10, 1))
	e.Update(flatCandle(1, 11, 1))
	e.Update(flatCandle(1, 99, 1)) // duplicate open_time
	e.Update(flatCandle(0, 99, 1)) // out of order

	snap := e.Snapshot()
	assert.Equal(t, int64(2), snap.CandleCount)
	assert.Equal(t, 11.0, snap.LastClose)
}

func TestSnapshotEMAPeriodsAppearWhenSeeded(t *testing.T) {
	e := NewEngine("BTCUSDT", "5m")
	for i := 0; i < 60; i++ {
		e.Update(flatCandle(i, 100, 1))
	}

	snap := e.Snapshot()
	assert.Contains(t, snap.EMA, 10)
	assert.Contains(t, snap.EMA, 30)
	assert.Contains(t, snap.EMA, 60)
	assert.NotContains(t, snap.EMA, 120, "not enough history for EMA120")
	assert.Equal(t, 100.0, snap.EMA[30])
}
