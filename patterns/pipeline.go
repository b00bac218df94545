package patterns

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/indicators"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
)

// Gain24hFunc resolves a symbol's rolling 24h price change percent. Wired
// to the live ticker table; ok is false when the symbol has no ticker yet.
type Gain24hFunc func(symbol string) (gainPct float64, ok bool)

// engineState is the per-(symbol, interval) working set: the indicator
// engine, the current level map, and the provisional-surge tier already
// alerted for the open candle.
type engineState struct {
	engine *indicators.Engine
	levels []Level

	provKlineTime int64
	provTier      float64
}

// Pipeline runs every detector over finalized (and selected provisional)
// candles and returns the resulting hits. State is bounded by an LRU so a
// churning symbol universe cannot grow memory without limit; evicting a
// live symbol only costs a warm-up period.
type Pipeline struct {
	cfg     config.PatternConfig
	det     DetectorConfig
	lvl     LevelConfig
	gain24h Gain24hFunc

	states *lru.Cache[string, *engineState]

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewPipeline builds a detection pipeline from config.
func NewPipeline(cfg config.PatternConfig, gain24h Gain24hFunc, log *zap.Logger, m *metrics.Metrics) (*Pipeline, error) {
	size := cfg.EngineCacheSize
	if size <= 0 {
		size = 2048
	}
	states, err := lru.New[string, *engineState](size)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg: cfg,
		det: DetectorConfig{
			VolumeSurgeTiers:    cfg.VolumeSurgeTiers,
			SqueezeMaxGapPct:    cfg.SqueezeMaxGapPct,
			BullishStreakLength: cfg.BullishStreakLength,
			StreakMinGainPct:    1.0,
		},
		lvl: levelConfigFrom(cfg),
		gain24h: gain24h,
		states:  states,
		log:     log,
		metrics: m,
	}, nil
}

// levelConfigFrom maps the pattern config onto the level knobs, falling
// back to the defaults for unset values.
func levelConfigFrom(cfg config.PatternConfig) LevelConfig {
	lvl := LevelConfig{
		ClusterPct:     cfg.SRClusterPct,
		MinTouches:     cfg.SRMinTouches,
		MaxLevels:      cfg.SRMaxLevels,
		TouchedPct:     cfg.SRTouchedPct,
		ApproachingPct: cfg.SRApproachingPct,
	}
	def := DefaultLevelConfig()
	if lvl.ClusterPct <= 0 {
		lvl.ClusterPct = def.ClusterPct
	}
	if lvl.MinTouches <= 0 {
		lvl.MinTouches = def.MinTouches
	}
	if lvl.MaxLevels <= 0 {
		lvl.MaxLevels = def.MaxLevels
	}
	if lvl.TouchedPct <= 0 {
		lvl.TouchedPct = def.TouchedPct
	}
	if lvl.ApproachingPct <= 0 {
		lvl.ApproachingPct = def.ApproachingPct
	}
	return lvl
}

func (p *Pipeline) state(symbol, interval string) *engineState {
	key := symbol + "|" + interval
	if st, ok := p.states.Get(key); ok {
		return st
	}
	st := &engineState{engine: indicators.NewEngine(symbol, interval)}
	p.states.Add(key, st)
	return st
}

// Warmup feeds historical candles into the engine without running
// detectors, so a fresh process does not alert on stale history.
func (p *Pipeline) Warmup(candles []types.Candle) {
	for _, c := range candles {
		st := p.state(c.Symbol, c.Interval)
		st.engine.Update(c)
	}
}

// ProcessFinal feeds one finalized candle through every detector and
// returns the hits. The candle also advances the indicator engine and the
// level map.
func (p *Pipeline) ProcessFinal(c types.Candle) []*Hit {
	st := p.state(c.Symbol, c.Interval)
	st.engine.Update(c)
	snap := st.engine.Snapshot()
	st.levels = BuildLevels(snap, p.lvl)
	window := st.engine.Window(indicators.WindowCap)

	var hits []*Hit
	add := func(h *Hit, ok bool) {
		if ok {
			hits = append(hits, h)
		}
	}

	// Volume surge is the one detector that runs regardless of trend.
	add(DetectVolumeSurge(c, snap, p.det, 0))

	if TrendGateOpen(snap) {
		add(DetectHammer(window, snap))
		add(DetectPerfectHammer(window))
		if c.Interval == "1h" {
			add(DetectDoji(window))
		}
		add(DetectSqueeze(c, snap, p.det))
		add(DetectBullishStreak(window, p.det))
		add(DetectPullbackReady(window, snap))

		if h, ok := CheckProximity(c, st.levels, p.lvl); ok && p.srQualifies(c, window, snap, st.levels, h) {
			hits = append(hits, h)
		}
	}

	if p.metrics != nil {
		for _, h := range hits {
			p.metrics.PatternHitsTotal.WithLabelValues(h.Type, c.Interval).Inc()
		}
	}
	return hits
}

// srQualifies applies the significance gate to level-proximity hits: the
// breakout score must clear the configured floor, or the symbol must carry
// a strong 24h gain. The prediction is attached to the hit either way so
// downstream consumers see the full context.
func (p *Pipeline) srQualifies(c types.Candle, window []types.Candle, snap indicators.Snapshot, levels []Level, h *Hit) bool {
	pred := PredictBreakout(window, snap, levels)
	h.Breakout = pred

	if gain, ok := p.gain24hPct(c.Symbol); ok {
		h.Gain24hPct = gain
		if gain >= p.cfg.Min24hGainPct {
			return true
		}
	}
	return pred != nil && pred.TotalScore >= p.cfg.MinBreakoutScore
}

func (p *Pipeline) gain24hPct(symbol string) (float64, bool) {
	if p.gain24h == nil {
		return 0, false
	}
	return p.gain24h(symbol)
}

// ProcessProvisional runs the intra-candle volume surge check on a still
// open candle. Only higher tiers than already alerted for the same candle
// fire again, and the bar is raised for bearish candles.
func (p *Pipeline) ProcessProvisional(c types.Candle) []*Hit {
	st := p.state(c.Symbol, c.Interval)
	snap := st.engine.Snapshot()

	minTier := 10.0
	if c.Close < c.Open {
		minTier = 20.0
	}
	if st.provKlineTime == c.OpenTime && st.provTier >= minTier {
		minTier = nextTier(p.det.VolumeSurgeTiers, st.provTier)
		if minTier == 0 {
			return nil
		}
	}

	h, ok := DetectVolumeSurge(c, snap, p.det, minTier)
	if !ok {
		return nil
	}
	h.Provisional = true

	st.provKlineTime = c.OpenTime
	st.provTier = h.TierLevel

	if p.metrics != nil {
		p.metrics.PatternHitsTotal.WithLabelValues(h.Type, c.Interval).Inc()
	}
	return []*Hit{h}
}

// nextTier returns the first tier strictly above current, or 0 when
// current is the top tier.
func nextTier(tiers []float64, current float64) float64 {
	for _, t := range tiers {
		if t > current {
			return t
		}
	}
	return 0
}
