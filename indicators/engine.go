package indicators

import (
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
)

// EMAPeriods are the EMA lengths every engine maintains.
var EMAPeriods = []int{10, 20, 30, 60, 120, 200, 240}

const (
	// WindowCap bounds the candle ring each engine keeps. S/R clustering
	// reads up to 200 candles; 240 leaves headroom.
	WindowCap = 240

	atrPeriod          = 14
	volumeBaselineSize = 20

	// SwingLookaround is L in the pivot definition: a candle is a swing
	// high when its high strictly exceeds the highs of the L candles on
	// each side.
	SwingLookaround = 5

	maxSwingPoints = 64
)

// SwingPoint is one confirmed pivot.
type SwingPoint struct {
	Seq      int64 // absolute candle sequence number within this engine
	OpenTime int64
	Price    float64
}

// Snapshot is a pure-value copy of the engine state at the last finalized
// candle. Detectors read snapshots; they never touch the engine directly.
type Snapshot struct {
	Symbol   string
	Interval string

	CandleCount int64
	LastClose   float64

	// EMA values by period; a period is absent until its seed window fills.
	EMA map[int]float64

	ATR    float64
	ATRSet bool

	// VolumeBaseline is the mean volume of the volumeBaselineSize candles
	// before the latest one.
	VolumeBaseline    float64
	VolumeBaselineSet bool

	SwingHighs []SwingPoint // ascending Seq
	SwingLows  []SwingPoint
}

// Engine maintains running indicators for one (symbol, interval). It is
// exclusively owned by its partition worker; no locking.
type Engine struct {
	symbol   string
	interval string

	candles []types.Candle // ring, chronological via seq arithmetic
	seq     int64          // total candles ever fed

	emas        map[int]*EMA
	atr         *ATR
	volBaseline *SMA

	swingHighs []SwingPoint
	swingLows  []SwingPoint
}

// NewEngine creates an indicator engine for one (symbol, interval).
func NewEngine(symbol, interval string) *Engine {
	emas := make(map[int]*EMA, len(EMAPeriods))
	for _, p := range EMAPeriods {
		emas[p] = NewEMA(p)
	}
	return &Engine{
		symbol:      symbol,
		interval:    interval,
		candles:     make([]types.Candle, 0, WindowCap),
		emas:        emas,
		atr:         NewATR(atrPeriod),
		volBaseline: NewSMA(volumeBaselineSize),
	}
}

// Update feeds one finalized candle. Must be called in ascending open_time
// order; duplicates of the last open_time are ignored.
func (e *Engine) Update(c types.Candle) {
	if n := len(e.candles); n > 0 && c.OpenTime <= e.candles[n-1].OpenTime {
		return
	}

	// The baseline deliberately lags one candle: surge detection compares
	// the new candle against the volumes before it.
	if len(e.candles) > 0 {
		e.volBaseline.Update(e.candles[len(e.candles)-1].Volume)
	}

	if len(e.candles) == WindowCap {
		copy(e.candles, e.candles[1:])
		e.candles = e.candles[:WindowCap-1]
	}
	e.candles = append(e.candles, c)
	e.seq++

	for _, ema := range e.emas {
		ema.Update(c.Close)
	}
	e.atr.Update(c.High, c.Low, c.Close)
	e.detectSwing()
}

// detectSwing confirms the candle L positions back as a pivot once both
// sides are visible.
func (e *Engine) detectSwing() {
	n := len(e.candles)
	idx := n - 1 - SwingLookaround
	if idx < SwingLookaround {
		return
	}

	cand := e.candles[idx]
	isHigh, isLow := true, true
	for off := 1; off <= SwingLookaround; off++ {
		if e.candles[idx-off].High >= cand.High || e.candles[idx+off].High >= cand.High {
			isHigh = false
		}
		if e.candles[idx-off].Low <= cand.Low || e.candles[idx+off].Low <= cand.Low {
			isLow = false
		}
	}

	seq := e.seq - int64(SwingLookaround) - 1
	if isHigh {
		e.swingHighs = appendSwing(e.swingHighs, SwingPoint{Seq: seq, OpenTime: cand.OpenTime, Price: cand.High})
	}
	if isLow {
		e.swingLows = appendSwing(e.swingLows, SwingPoint{Seq: seq, OpenTime: cand.OpenTime, Price: cand.Low})
	}
}

func appendSwing(points []SwingPoint, p SwingPoint) []SwingPoint {
	points = append(points, p)
	if len(points) > maxSwingPoints {
		points = points[len(points)-maxSwingPoints:]
	}
	return points
}

// Window returns the last n candles, oldest first. Fewer are returned when
// the engine has not seen n candles yet. The returned slice is a copy.
func (e *Engine) Window(n int) []types.Candle {
	if n > len(e.candles) {
		n = len(e.candles)
	}
	out := make([]types.Candle, n)
	copy(out, e.candles[len(e.candles)-n:])
	return out
}

// Snapshot returns a value-type copy of the indicator state.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Symbol:      e.symbol,
		Interval:    e.interval,
		CandleCount: e.seq,
		EMA:         make(map[int]float64, len(e.emas)),
	}
	if n := len(e.candles); n > 0 {
		snap.LastClose = e.candles[n-1].Close
	}
	for p, ema := range e.emas {
		if v, ok := ema.Value(); ok {
			snap.EMA[p] = v
		}
	}
	snap.ATR, snap.ATRSet = e.atr.Value()
	snap.VolumeBaseline, snap.VolumeBaselineSet = e.volBaseline.Value()

	snap.SwingHighs = append([]SwingPoint(nil), e.swingHighs...)
	snap.SwingLows = append([]SwingPoint(nil), e.swingLows...)
	return snap
}
