package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/indicators"
)

func mkCandle(i int, o, h, l, c, v float64) types.Candle {
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

func flat(i int, price, volume float64) types.Candle {
	return mkCandle(i, price, price+0.01, price-0.01, price+0.005, volume)
}

func TestDetectVolumeSurgeTiers(t *testing.T) {
	cfg := DefaultDetectorConfig()
	snap := indicators.Snapshot{VolumeBaseline: 100, VolumeBaselineSet: true}

	// 12x baseline, bullish, clean body.
	c := mkCandle(100, 10, 10.6, 10, 10.5, 1200)
	hit, ok := DetectVolumeSurge(c, snap, cfg, 0)
	require.True(t, ok)
	assert.Equal(t, AlertVolumeSurge, hit.Type)
	assert.Equal(t, 10.0, hit.TierLevel, "12x lands in the 10x tier")
	assert.Equal(t, 12.0, hit.VolumeMultiple)
	assert.True(t, hit.Important)

	// Below the lowest tier.
	c.Volume = 400
	_, ok = DetectVolumeSurge(c, snap, cfg, 0)
	assert.False(t, ok)

	// minTier raises the bar.
	c.Volume = 700
	_, ok = DetectVolumeSurge(c, snap, cfg, 10)
	assert.False(t, ok, "7x does not clear a 10x floor")
}

func TestDetectVolumeSurgeRejectsBearishAndTopWick(t *testing.T) {
	cfg := DefaultDetectorConfig()
	snap := indicators.Snapshot{VolumeBaseline: 100, VolumeBaselineSet: true}

	bearish := mkCandle(100, 10.5, 10.6, 10, 10.1, 1200)
	_, ok := DetectVolumeSurge(bearish, snap, cfg, 0)
	assert.False(t, ok)

	// Bullish close but most of the range is upper shadow.
	wicked := mkCandle(100, 10.0, 11.0, 10.0, 10.1, 1200)
	_, ok = DetectVolumeSurge(wicked, snap, cfg, 0)
	assert.False(t, ok)
}

func TestDetectVolumeSurgeNeedsBaseline(t *testing.T) {
	_, ok := DetectVolumeSurge(mkCandle(0, 10, 11, 10, 10.9, 1e6), indicators.Snapshot{}, DefaultDetectorConfig(), 0)
	assert.False(t, ok)
}

func TestDetectHammerReclaimsEMA120(t *testing.T) {
	window := make([]types.Candle, 0, 31)
	// 30 candles holding well above the average.
	for i := 0; i < 30; i++ {
		window = append(window, mkCandle(i, 105, 106, 104, 105, 10))
	}
	// Hammer: dips to 98, closes 104.5; long lower shadow, tiny upper.
	window = append(window, mkCandle(30, 103.5, 104.6, 98, 104.5, 10))

	snap := indicators.Snapshot{EMA: map[int]float64{120: 100}}
	hit, ok := DetectHammer(window, snap)
	require.True(t, ok)
	assert.Equal(t, AlertHammer, hit.Type)

	// Same shape but a prior candle already traded below the average.
	window[10].Low = 99
	_, ok = DetectHammer(window, snap)
	assert.False(t, ok)
}

func TestDetectPerfectHammer(t *testing.T) {
	window := make([]types.Candle, 0, 30)
	for i := 0; i < 29; i++ {
		window = append(window, mkCandle(i, 105, 106, 104, 105, 10))
	}
	// Lowest low of the window, >=70% lower shadow, <=5% upper shadow.
	window = append(window, mkCandle(29, 102.2, 102.55, 95, 102.5, 10))

	hit, ok := DetectPerfectHammer(window)
	require.True(t, ok)
	assert.Equal(t, AlertPerfectHammer, hit.Type)

	// Not the lowest low anymore.
	window[5].Low = 90
	_, ok = DetectPerfectHammer(window)
	assert.False(t, ok)
}

func TestDetectDoji(t *testing.T) {
	window := make([]types.Candle, 0, 100)
	// Advance from 100 to 120 (20% gain) with the low never retested.
	for i := 0; i < 99; i++ {
		price := 100 + float64(i)*0.2
		window = append(window, mkCandle(i, price, price+0.3, price-0.1, price+0.2, 10))
	}
	// Doji: tiny body, range over 1% of close.
	window = append(window, mkCandle(99, 119.8, 121.0, 118.5, 119.85, 10))

	hit, ok := DetectDoji(window)
	require.True(t, ok)
	assert.Equal(t, AlertDoji, hit.Type)

	// Fat body disqualifies.
	window[99].Close = 120.9
	_, ok = DetectDoji(window)
	assert.False(t, ok)
}

func TestDetectSqueeze(t *testing.T) {
	cfg := DefaultDetectorConfig()
	c := mkCandle(0, 100, 101, 99, 100, 10)

	snap := indicators.Snapshot{EMA: map[int]float64{20: 100.01, 60: 100.0}}
	hit, ok := DetectSqueeze(c, snap, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.01, hit.SqueezePct, 1e-9)

	snap.EMA[20] = 100.5 // 0.5% gap, above the 0.03% bound
	_, ok = DetectSqueeze(c, snap, cfg)
	assert.False(t, ok)
}

func TestDetectBullishStreak(t *testing.T) {
	cfg := DefaultDetectorConfig()

	window := make([]types.Candle, 0, 5)
	for i := 0; i < 5; i++ {
		window = append(window, mkCandle(i, 100, 100.6, 100, 100.5, 10))
	}
	// All bullish but every gain is 0.5%: not strong enough.
	_, ok := DetectBullishStreak(window, cfg)
	assert.False(t, ok)

	window[2] = mkCandle(2, 100, 101.6, 100, 101.5, 10) // 1.5% gain
	hit, ok := DetectBullishStreak(window, cfg)
	require.True(t, ok)
	assert.Equal(t, AlertBullishStreak, hit.Type)

	window[4] = mkCandle(4, 100.5, 100.6, 100, 100.2, 10) // bearish close
	_, ok = DetectBullishStreak(window, cfg)
	assert.False(t, ok)
}

func TestDetectPullbackReady(t *testing.T) {
	// Surge 100 -> 110 (10%), retrace to ~106 (40% of the swing), then a
	// hammer-shaped stabilization candle on fading volume.
	window := []types.Candle{
		mkCandle(0, 100.5, 101, 100, 100.5, 100),
		mkCandle(1, 100.5, 104, 100.4, 103.8, 120),
		mkCandle(2, 103.8, 110, 103.6, 109.5, 150),
		mkCandle(3, 109.5, 109.6, 107, 107.2, 60),
		mkCandle(4, 107.2, 107.3, 105, 106.0, 40),
		mkCandle(5, 105.8, 106.2, 104.5, 106.1, 30), // long lower shadow
	}
	snap := indicators.Snapshot{
		SwingLows:  []indicators.SwingPoint{{Seq: 0, OpenTime: 0, Price: 100}},
		SwingHighs: []indicators.SwingPoint{{Seq: 2, OpenTime: 600_000, Price: 110}},
	}

	hit, ok := DetectPullbackReady(window, snap)
	require.True(t, ok)
	assert.Equal(t, AlertPullbackReady, hit.Type)
	assert.InDelta(t, 39.0, hit.RetracePct, 1.0)
	assert.Greater(t, hit.VolumeShrinkPct, 0.0)
}

func TestDetectPullbackReadyRejectsDeepRetrace(t *testing.T) {
	// Price gave back more than 61.8% of the swing.
	window := []types.Candle{
		mkCandle(0, 100, 110, 100, 109, 100),
		mkCandle(1, 109, 109.5, 102, 102.5, 60),
		mkCandle(2, 102.5, 103, 101, 102.8, 40),
		mkCandle(3, 102.5, 103, 101.5, 102.9, 30),
	}
	snap := indicators.Snapshot{
		SwingLows:  []indicators.SwingPoint{{Seq: 0, OpenTime: 0, Price: 100}},
		SwingHighs: []indicators.SwingPoint{{Seq: 1, OpenTime: 300_000, Price: 110}},
	}
	_, ok := DetectPullbackReady(window, snap)
	assert.False(t, ok)
}

func TestTrendGate(t *testing.T) {
	assert.True(t, TrendGateOpen(indicators.Snapshot{EMA: map[int]float64{30: 101, 60: 100}}))
	assert.False(t, TrendGateOpen(indicators.Snapshot{EMA: map[int]float64{30: 100, 60: 101}}))
	assert.False(t, TrendGateOpen(indicators.Snapshot{EMA: map[int]float64{30: 100}}), "missing EMA60")
}
