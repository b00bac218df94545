package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
)

func testPatternConfig() config.PatternConfig {
	return config.PatternConfig{
		Intervals:           []string{"5m", "15m", "1h"},
		VolumeSurgeTiers:    []float64{5, 10, 15, 20},
		SqueezeMaxGapPct:    0.03,
		BullishStreakLength: 5,
		SRTouchedPct:        0.1,
		SRApproachingPct:    0.5,
		MinBreakoutScore:    60,
		Min24hGainPct:       10,
		EngineCacheSize:     16,
	}
}

func newTestPipeline(t *testing.T, gain Gain24hFunc) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testPatternConfig(), gain, logger.NewNop(), nil)
	require.NoError(t, err)
	return p
}

func TestPipelineWarmupSeedsBaselinesSilently(t *testing.T) {
	p := newTestPipeline(t, nil)

	history := make([]types.Candle, 0, 30)
	for i := 0; i < 30; i++ {
		history = append(history, flat(i, 100, 100))
	}
	p.Warmup(history)

	// Warmup runs to completion before any live candle is processed; the
	// first live surge detects against the replayed baseline alone.
	hits := p.ProcessFinal(mkCandle(30, 100, 101.2, 100, 101, 1200))
	var surge *Hit
	for _, h := range hits {
		if h.Type == AlertVolumeSurge {
			surge = h
		}
	}
	require.NotNil(t, surge)
	assert.Equal(t, 10.0, surge.TierLevel)

	// Without warmed history the same candle has no baseline to beat.
	cold := newTestPipeline(t, nil)
	for _, h := range cold.ProcessFinal(mkCandle(30, 100, 101.2, 100, 101, 1200)) {
		assert.NotEqual(t, AlertVolumeSurge, h.Type)
	}
}

func TestPipelineVolumeSurgeOnFinalCandle(t *testing.T) {
	p := newTestPipeline(t, nil)

	// Build up a quiet baseline, then a 12x volume bullish candle.
	for i := 0; i < 30; i++ {
		p.ProcessFinal(flat(i, 100, 100))
	}
	hits := p.ProcessFinal(mkCandle(30, 100, 101.2, 100, 101, 1200))

	require.NotEmpty(t, hits)
	var surge *Hit
	for _, h := range hits {
		if h.Type == AlertVolumeSurge {
			surge = h
		}
	}
	require.NotNil(t, surge)
	assert.Equal(t, 10.0, surge.TierLevel)
	assert.False(t, surge.Provisional)
}

func TestPipelineProvisionalTierProgression(t *testing.T) {
	p := newTestPipeline(t, nil)
	for i := 0; i < 30; i++ {
		p.ProcessFinal(flat(i, 100, 100))
	}

	open := mkCandle(30, 100, 101, 100, 100.8, 1100) // 11x, clears the 10x floor
	hits := p.ProcessProvisional(open)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Provisional)
	assert.Equal(t, 10.0, hits[0].TierLevel)

	// Same candle, same tier: suppressed.
	open.Volume = 1300
	assert.Empty(t, p.ProcessProvisional(open))

	// Same candle, next tier: fires again.
	open.Volume = 1600
	hits = p.ProcessProvisional(open)
	require.Len(t, hits, 1)
	assert.Equal(t, 15.0, hits[0].TierLevel)

	// New candle resets the ladder.
	next := mkCandle(31, 100, 101, 100, 100.9, 1050)
	hits = p.ProcessProvisional(next)
	require.Len(t, hits, 1)
	assert.Equal(t, 10.0, hits[0].TierLevel)
}

func TestPipelineProvisionalBearishNeedsTopTier(t *testing.T) {
	p := newTestPipeline(t, nil)
	for i := 0; i < 30; i++ {
		p.ProcessFinal(flat(i, 100, 100))
	}

	// 15x on a bearish candle: below the 20x bearish floor. The shape
	// filter would reject it anyway; the floor suppresses it first.
	down := mkCandle(30, 101, 101, 99.8, 100, 1500)
	assert.Empty(t, p.ProcessProvisional(down))
}

func TestPipelineTrendGateBlocksPatternDetectors(t *testing.T) {
	p := newTestPipeline(t, nil)

	// Steady downtrend: EMA30 < EMA60, so only the volume surge detector
	// may fire.
	price := 200.0
	for i := 0; i < 80; i++ {
		price -= 0.5
		p.ProcessFinal(mkCandle(i, price+0.5, price+0.6, price-0.1, price, 100))
	}
	hits := p.ProcessFinal(mkCandle(80, price, price+0.1, price-5, price+0.05, 120))
	for _, h := range hits {
		assert.Equal(t, AlertVolumeSurge, h.Type, "downtrend admits only volume surges")
	}
}

func TestPipelineSRGateBy24hGain(t *testing.T) {
	gainBySymbol := map[string]float64{"BTCUSDT": 12.5}
	p := newTestPipeline(t, func(symbol string) (float64, bool) {
		g, ok := gainBySymbol[symbol]
		return g, ok
	})

	hits := runLevelRetest(p)

	var sr *Hit
	for _, h := range hits {
		if h.Type == AlertTouched || h.Type == AlertApproaching {
			sr = h
		}
	}
	require.NotNil(t, sr, "12.5%% 24h gain clears the 10%% gate")
	assert.Equal(t, 12.5, sr.Gain24hPct)
	assert.NotEmpty(t, sr.LevelType)
}

func TestPipelineSRSuppressedWithoutGainOrScore(t *testing.T) {
	p := newTestPipeline(t, func(string) (float64, bool) { return 2.0, true })

	hits := runLevelRetest(p)
	for _, h := range hits {
		assert.NotEqual(t, AlertTouched, h.Type)
		assert.NotEqual(t, AlertApproaching, h.Type)
	}
}

// runLevelRetest feeds an uptrending series that forms a resistance zone
// near 110 twice and then closes right at it, so a proximity hit is
// produced if the significance gate admits it. Trend stays up throughout.
func runLevelRetest(p *Pipeline) []*Hit {
	i := 0
	emit := func(o, h, l, c float64) []*Hit {
		candle := mkCandle(i, o, h, l, c, 100)
		i++
		return p.ProcessFinal(candle)
	}

	// Rise to 110, two rejections at 110 with pullbacks to 107, rise again.
	for k := 0; k < 40; k++ {
		base := 100 + float64(k)*0.25
		emit(base, base+0.3, base-0.05, base+0.25)
	}
	for cycle := 0; cycle < 2; cycle++ {
		emit(110, 110.2, 109.8, 110)
		for k := 0; k < 6; k++ {
			price := 110 - float64(k+1)*0.5
			emit(price+0.5, price+0.6, price-0.1, price)
		}
		for k := 0; k < 6; k++ {
			price := 107 + float64(k+1)*0.5
			emit(price-0.5, price+0.1, price-0.6, price)
		}
	}

	var last []*Hit
	last = emit(109.9, 110.3, 109.8, 110.05)
	return last
}
