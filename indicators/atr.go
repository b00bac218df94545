package indicators

import "math"

// ATR is Wilder's average true range: the first `period` true ranges are
// averaged simply, after which each update smooths with weight 1/period.
type ATR struct {
	period    int
	value     float64
	seeded    bool
	seedSum   float64
	seedCount int

	prevClose float64
	havePrev  bool
}

// NewATR creates an ATR with the given period (14 in this engine).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Update feeds one candle's high/low/close.
func (a *ATR) Update(high, low, closePrice float64) {
	tr := high - low
	if a.havePrev {
		if hc := math.Abs(high - a.prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(low - a.prevClose); lc > tr {
			tr = lc
		}
	}
	a.prevClose = closePrice
	if !a.havePrev {
		// The first candle has no prior close; its bare range seeds TR.
		a.havePrev = true
	}

	if !a.seeded {
		a.seedSum += tr
		a.seedCount++
		if a.seedCount == a.period {
			a.value = a.seedSum / float64(a.period)
			a.seeded = true
		}
		return
	}
	a.value = (a.value*float64(a.period-1) + tr) / float64(a.period)
}

// Value returns the current ATR; ok is false until the seed window fills.
func (a *ATR) Value() (float64, bool) {
	return a.value, a.seeded
}
