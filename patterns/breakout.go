package patterns

import (
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/indicators"
)

// Prediction is the breakout readiness score for one candle. Sub-scores
// are each 0-100; the total is their weighted sum.
type Prediction struct {
	VolatilityScore    float64
	VolumeScore        float64
	MAConvergenceScore float64
	PositionScore      float64
	PatternScore       float64

	TotalScore float64
	Direction  string // UP, DOWN or UNCLEAR

	NearestLevel  float64
	NearestType   string
	LevelStrength float64
}

const (
	DirectionUp      = "UP"
	DirectionDown    = "DOWN"
	DirectionUnclear = "UNCLEAR"

	breakoutMinCandles = 60
)

// breakout sub-score weights
const (
	wVolatility = 0.25
	wVolume     = 0.20
	wMA         = 0.25
	wPosition   = 0.15
	wPattern    = 0.15
)

// PredictBreakout scores how primed the symbol is for an imminent range
// break: compressed volatility, drying volume, converged averages, price
// hugging a level, and a reversal-shaped candle all raise the score.
// Returns nil with fewer than breakoutMinCandles candles of history.
func PredictBreakout(window []types.Candle, snap indicators.Snapshot, levels []Level) *Prediction {
	if len(window) < breakoutMinCandles || snap.LastClose <= 0 {
		return nil
	}
	c := window[len(window)-1]

	p := &Prediction{
		VolatilityScore:    volatilityScore(window, snap),
		VolumeScore:        volumeScore(window),
		MAConvergenceScore: maConvergenceScore(snap),
		PositionScore:      positionScore(c.Close, levels),
		PatternScore:       patternScore(window),
	}
	p.TotalScore = p.VolatilityScore*wVolatility +
		p.VolumeScore*wVolume +
		p.MAConvergenceScore*wMA +
		p.PositionScore*wPosition +
		p.PatternScore*wPattern

	// Trend call needs both averages; without them the direction stays
	// UNCLEAR unless the nearest level picks a side below.
	p.Direction = DirectionUnclear
	ema30, ok30 := snap.EMA[30]
	ema60, ok60 := snap.EMA[60]
	if ok30 && ok60 {
		if ema30 > ema60 {
			p.Direction = DirectionUp
		} else {
			p.Direction = DirectionDown
		}
	}
	if lv, ok := NearestLevel(levels, c.Close); ok {
		p.NearestLevel = lv.Price
		p.NearestType = lv.Type
		p.LevelStrength = lv.Strength
		// Hugging resistance biases up, hugging support biases down; the
		// level side only decides when the averages offered no call.
		if p.Direction == DirectionUnclear {
			if lv.Type == LevelResistance {
				p.Direction = DirectionUp
			} else {
				p.Direction = DirectionDown
			}
		}
	}
	return p
}

// volatilityScore maps the recent/older ATR-style range ratio to 0-100:
// ratio >= 1.5 (expanding) scores 0, <= 0.5 (compressing) scores 100.
func volatilityScore(window []types.Candle, snap indicators.Snapshot) float64 {
	const recent, older = 10, 30
	if len(window) < recent+older {
		if !snap.ATRSet || snap.LastClose <= 0 {
			return 0
		}
		// Fallback: score the normalized ATR directly.
		atrPct := snap.ATR / snap.LastClose * 100
		return clampScore((2 - atrPct) / 2 * 100)
	}

	avgRange := func(cs []types.Candle) float64 {
		var sum float64
		for _, c := range cs {
			sum += c.High - c.Low
		}
		return sum / float64(len(cs))
	}
	r := avgRange(window[len(window)-recent:])
	o := avgRange(window[len(window)-recent-older : len(window)-recent])
	if o <= 0 {
		return 0
	}
	return ratioScore(r / o)
}

// volumeScore scores volume contraction with the same ratio mapping.
func volumeScore(window []types.Candle) float64 {
	const recent, older = 10, 30
	if len(window) < recent+older {
		return 0
	}
	avg := func(cs []types.Candle) float64 {
		var sum float64
		for _, c := range cs {
			sum += c.Volume
		}
		return sum / float64(len(cs))
	}
	o := avg(window[len(window)-recent-older : len(window)-recent])
	if o <= 0 {
		return 0
	}
	return ratioScore(avg(window[len(window)-recent:]) / o)
}

// ratioScore maps recent/older ratios linearly: >=1.5 -> 0, <=0.5 -> 100.
func ratioScore(ratio float64) float64 {
	return clampScore((1.5 - ratio) / 1.0 * 100)
}

// maConvergenceScore scores the EMA20/EMA60 gap: 100 when the averages
// are within 0.03% of price, fading to 0 at a 1% gap.
func maConvergenceScore(snap indicators.Snapshot) float64 {
	ema20, ok20 := snap.EMA[20]
	ema60, ok60 := snap.EMA[60]
	if !ok20 || !ok60 || snap.LastClose <= 0 {
		return 0
	}
	gap := ema20 - ema60
	if gap < 0 {
		gap = -gap
	}
	gapPct := gap / snap.LastClose * 100
	if gapPct <= 0.03 {
		return 100
	}
	return clampScore((1 - gapPct) / (1 - 0.03) * 100)
}

// positionScore scores distance to the nearest level: at the level -> 100,
// 5% or more away -> 0.
func positionScore(price float64, levels []Level) float64 {
	lv, ok := NearestLevel(levels, price)
	if !ok || lv.Price <= 0 {
		return 0
	}
	dist := (price - lv.Price) / lv.Price * 100
	if dist < 0 {
		dist = -dist
	}
	return clampScore((5 - dist) / 5 * 100)
}

// patternScore rewards reversal-shaped candles at the range edge.
func patternScore(window []types.Candle) float64 {
	n := len(window)
	if n < 2 {
		return 0
	}
	cur, prev := window[n-1], window[n-2]
	a := Anatomize(cur)

	score := 0.0
	if isHammerShape(a) {
		score += 40
	}
	if isBullishEngulfing(prev, cur) {
		score += 40
	}
	if a.BodyFrac <= 0.05 && a.Range > 0 {
		score += 20
	}
	return clampScore(score)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
