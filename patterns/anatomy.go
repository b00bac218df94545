package patterns

import "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"

// Anatomy is the shape decomposition of one candle: body and shadow sizes
// as fractions of the full range. A zero-range candle has all fractions 0.
type Anatomy struct {
	Range     float64
	Body      float64
	BodyFrac  float64
	UpperFrac float64
	LowerFrac float64
	Bullish   bool
}

// Anatomize decomposes a candle.
func Anatomize(c types.Candle) Anatomy {
	a := Anatomy{
		Range:   c.High - c.Low,
		Bullish: c.Close > c.Open,
	}
	bodyTop, bodyBottom := c.Open, c.Close
	if c.Close > c.Open {
		bodyTop, bodyBottom = c.Close, c.Open
	}
	a.Body = bodyTop - bodyBottom

	if a.Range <= 0 {
		return a
	}
	a.BodyFrac = a.Body / a.Range
	a.UpperFrac = (c.High - bodyTop) / a.Range
	a.LowerFrac = (bodyBottom - c.Low) / a.Range
	return a
}

// GainPct is the candle's open-to-close gain in percent.
func GainPct(c types.Candle) float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// isHammerShape is the stabilization-signal shape test: a long lower
// shadow with little above the body.
func isHammerShape(a Anatomy) bool {
	return a.LowerFrac > 0.5 && a.UpperFrac < 0.2
}

// isBullishEngulfing reports whether cur's body engulfs prev's body with
// opposite colors.
func isBullishEngulfing(prev, cur types.Candle) bool {
	return prev.Close < prev.Open &&
		cur.Close > cur.Open &&
		cur.Open <= prev.Close &&
		cur.Close >= prev.Open
}
