package patterns

import (
	"fmt"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/helpers"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/indicators"
)

// DetectorConfig carries the tunables shared by the detectors.
type DetectorConfig struct {
	VolumeSurgeTiers    []float64 // ascending, e.g. 5,10,15,20
	SqueezeMaxGapPct    float64   // |EMA20-EMA60|/price upper bound, percent
	BullishStreakLength int
	StreakMinGainPct    float64
}

// DefaultDetectorConfig mirrors the production defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		VolumeSurgeTiers:    []float64{5, 10, 15, 20},
		SqueezeMaxGapPct:    0.03,
		BullishStreakLength: 5,
		StreakMinGainPct:    1.0,
	}
}

// TrendGateOpen is the short-term trend prerequisite every detector except
// the pure volume surge consults: EMA30 above EMA60.
func TrendGateOpen(snap indicators.Snapshot) bool {
	ema30, ok30 := snap.EMA[30]
	ema60, ok60 := snap.EMA[60]
	return ok30 && ok60 && ema30 > ema60
}

// DetectVolumeSurge fires when a final candle's volume reaches a tier
// multiple of the rolling baseline on a bullish body without a dominant
// upper shadow. minTier lets the provisional path demand a higher tier.
func DetectVolumeSurge(c types.Candle, snap indicators.Snapshot, cfg DetectorConfig, minTier float64) (*Hit, bool) {
	if !snap.VolumeBaselineSet || snap.VolumeBaseline <= 0 {
		return nil, false
	}

	multiple := c.Volume / snap.VolumeBaseline
	tier := 0.0
	for _, t := range cfg.VolumeSurgeTiers {
		if multiple >= t {
			tier = t
		}
	}
	if tier == 0 || tier < minTier {
		return nil, false
	}

	a := Anatomize(c)
	if !a.Bullish || a.UpperFrac >= 0.5 {
		return nil, false
	}

	return &Hit{
		Symbol:         c.Symbol,
		Interval:       c.Interval,
		Type:           AlertVolumeSurge,
		KlineTime:      c.OpenTime,
		Price:          c.Close,
		Volume:         c.Volume,
		BaselineVolume: snap.VolumeBaseline,
		VolumeMultiple: multiple,
		TierLevel:      tier,
		Important:      tier >= 10,
		Description: fmt.Sprintf("volume %sx baseline (tier %s)",
			helpers.FormatFloat(multiple, 1), helpers.FormatFloat(tier, 0)),
	}, true
}

// DetectHammer fires on a hammer whose body closes back above EMA120 after
// dipping below it, in a context where the prior 30 candles never traded
// below that average.
func DetectHammer(window []types.Candle, snap indicators.Snapshot) (*Hit, bool) {
	const lookback = 30
	if len(window) < lookback+1 {
		return nil, false
	}
	ema120, ok := snap.EMA[120]
	if !ok {
		return nil, false
	}

	c := window[len(window)-1]
	a := Anatomize(c)
	if a.LowerFrac <= 0.5 || a.UpperFrac >= 0.2 {
		return nil, false
	}
	if !(c.Low < ema120 && ema120 < c.Close) {
		return nil, false
	}
	for _, prev := range window[len(window)-1-lookback : len(window)-1] {
		if prev.Low <= ema120 {
			return nil, false
		}
	}

	return &Hit{
		Symbol:      c.Symbol,
		Interval:    c.Interval,
		Type:        AlertHammer,
		KlineTime:   c.OpenTime,
		Price:       c.Close,
		Description: fmt.Sprintf("hammer reclaimed EMA120 at %s", helpers.FormatPrice(ema120)),
	}, true
}

// DetectPerfectHammer fires on an extreme hammer printing the lowest low
// of the last 30 candles. Independent of any moving average.
func DetectPerfectHammer(window []types.Candle) (*Hit, bool) {
	const lookback = 30
	if len(window) < lookback {
		return nil, false
	}

	c := window[len(window)-1]
	a := Anatomize(c)
	if !a.Bullish || a.LowerFrac < 0.70 || a.UpperFrac > 0.05 {
		return nil, false
	}
	for _, prev := range window[len(window)-lookback : len(window)-1] {
		if prev.Low < c.Low {
			return nil, false
		}
	}

	return &Hit{
		Symbol:      c.Symbol,
		Interval:    c.Interval,
		Type:        AlertPerfectHammer,
		KlineTime:   c.OpenTime,
		Price:       c.Close,
		Description: "perfect hammer at 30-candle low",
	}, true
}

// DetectDoji fires on an hourly doji printed inside an intact uptrend:
// over the last 100 candles the low-to-high gain reached 15% and the low
// was never breached afterwards.
func DetectDoji(window []types.Candle) (*Hit, bool) {
	const lookback = 100
	if len(window) < lookback {
		return nil, false
	}

	c := window[len(window)-1]
	a := Anatomize(c)
	if a.BodyFrac > 0.05 || c.Close <= 0 || a.Range < c.Close*0.01 {
		return nil, false
	}

	scope := window[len(window)-lookback:]
	lowIdx := 0
	for i, w := range scope {
		if w.Low < scope[lowIdx].Low {
			lowIdx = i
		}
	}
	low := scope[lowIdx].Low
	if low <= 0 {
		return nil, false
	}

	high := low
	for _, w := range scope[lowIdx:] {
		if w.High > high {
			high = w.High
		}
	}
	if (high-low)/low*100 < 15 {
		return nil, false
	}

	return &Hit{
		Symbol:      c.Symbol,
		Interval:    c.Interval,
		Type:        AlertDoji,
		KlineTime:   c.OpenTime,
		Price:       c.Close,
		Description: "doji after intact 15% advance",
	}, true
}

// DetectSqueeze fires when EMA20 and EMA60 converge within the configured
// gap. SqueezePct on the hit is the actual gap, which the alert engine
// compares against the previous alert for the tightening bypass.
func DetectSqueeze(c types.Candle, snap indicators.Snapshot, cfg DetectorConfig) (*Hit, bool) {
	ema20, ok20 := snap.EMA[20]
	ema60, ok60 := snap.EMA[60]
	if !ok20 || !ok60 || c.Close <= 0 {
		return nil, false
	}

	gap := ema20 - ema60
	if gap < 0 {
		gap = -gap
	}
	gapPct := gap / c.Close * 100
	if gapPct > cfg.SqueezeMaxGapPct {
		return nil, false
	}

	return &Hit{
		Symbol:      c.Symbol,
		Interval:    c.Interval,
		Type:        AlertSqueeze,
		KlineTime:   c.OpenTime,
		Price:       c.Close,
		SqueezePct:  gapPct,
		Description: fmt.Sprintf("EMA20/EMA60 squeeze at %s%%", helpers.FormatFloat(gapPct, 4)),
	}, true
}

// DetectBullishStreak fires when the last N candles are all bullish and at
// least one gained the minimum percent.
func DetectBullishStreak(window []types.Candle, cfg DetectorConfig) (*Hit, bool) {
	n := cfg.BullishStreakLength
	if n <= 0 || len(window) < n {
		return nil, false
	}

	streak := window[len(window)-n:]
	strong := false
	for _, c := range streak {
		if c.Close <= c.Open {
			return nil, false
		}
		if GainPct(c) >= cfg.StreakMinGainPct {
			strong = true
		}
	}
	if !strong {
		return nil, false
	}

	c := streak[len(streak)-1]
	return &Hit{
		Symbol:      c.Symbol,
		Interval:    c.Interval,
		Type:        AlertBullishStreak,
		KlineTime:   c.OpenTime,
		Price:       c.Close,
		Description: fmt.Sprintf("%d consecutive bullish candles", n),
	}, true
}

// DetectPullbackReady fires when price has retraced part of a qualifying
// swing-low to swing-high surge, held above the golden-ratio level, and
// printed a stabilization signal on fading volume.
func DetectPullbackReady(window []types.Candle, snap indicators.Snapshot) (*Hit, bool) {
	const (
		minSurgePct = 5.0
		maxRetrace  = 0.618
	)
	if len(window) < 4 {
		return nil, false
	}
	c := window[len(window)-1]

	// Latest swing high preceded by a swing low with enough surge.
	var swingLow, swingHigh *indicators.SwingPoint
	for i := len(snap.SwingHighs) - 1; i >= 0 && swingHigh == nil; i-- {
		h := snap.SwingHighs[i]
		for j := len(snap.SwingLows) - 1; j >= 0; j-- {
			l := snap.SwingLows[j]
			if l.Seq >= h.Seq || l.Price <= 0 {
				continue
			}
			if (h.Price-l.Price)/l.Price*100 >= minSurgePct {
				hh, ll := h, l
				swingHigh, swingLow = &hh, &ll
				break
			}
		}
	}
	if swingHigh == nil {
		return nil, false
	}

	if c.Close <= swingLow.Price || c.Close >= swingHigh.Price {
		return nil, false
	}
	retrace := (swingHigh.Price - c.Close) / (swingHigh.Price - swingLow.Price)
	if retrace <= 0 || retrace > maxRetrace {
		return nil, false
	}

	// Stabilization in the last 3 candles: hammer shape, or a bullish
	// close within 0.5% of the prior candle's high.
	stabilized := false
	for i := len(window) - 3; i < len(window); i++ {
		if i < 1 {
			continue
		}
		cur := window[i]
		if isHammerShape(Anatomize(cur)) {
			stabilized = true
			break
		}
		prevHigh := window[i-1].High
		if cur.Close > cur.Open && prevHigh > 0 {
			dist := (prevHigh - cur.Close) / prevHigh * 100
			if dist >= -0.5 && dist <= 0.5 {
				stabilized = true
				break
			}
		}
	}
	if !stabilized {
		return nil, false
	}

	shrink := volumeShrinkSince(window, swingHigh.OpenTime)

	return &Hit{
		Symbol:          c.Symbol,
		Interval:        c.Interval,
		Type:            AlertPullbackReady,
		KlineTime:       c.OpenTime,
		Price:           c.Close,
		RetracePct:      retrace * 100,
		VolumeShrinkPct: shrink,
		Description: fmt.Sprintf("pullback held %s%% retrace of %s -> %s surge",
			helpers.FormatFloat(retrace*100, 1),
			helpers.FormatPrice(swingLow.Price), helpers.FormatPrice(swingHigh.Price)),
	}, true
}

// volumeShrinkSince compares average volume after the swing-high candle
// with average volume up to and including it, as a shrink percentage.
func volumeShrinkSince(window []types.Candle, swingHighOpenTime int64) float64 {
	var before, after float64
	var nBefore, nAfter int
	for _, c := range window {
		if c.OpenTime <= swingHighOpenTime {
			before += c.Volume
			nBefore++
		} else {
			after += c.Volume
			nAfter++
		}
	}
	if nBefore == 0 || nAfter == 0 || before == 0 {
		return 0
	}
	avgBefore := before / float64(nBefore)
	avgAfter := after / float64(nAfter)
	shrink := (1 - avgAfter/avgBefore) * 100
	if shrink < 0 {
		return 0
	}
	return shrink
}
