package indicators

// EMA is an incrementally updated exponential moving average, seeded from
// the simple mean of the first `period` inputs the way most charting
// platforms do.
type EMA struct {
	period    int
	value     float64
	seeded    bool
	seedSum   float64
	seedCount int
}

// NewEMA creates an EMA with the given period.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

// Update feeds one price into the average.
func (e *EMA) Update(price float64) {
	if !e.seeded {
		e.seedSum += price
		e.seedCount++
		if e.seedCount == e.period {
			e.value = e.seedSum / float64(e.period)
			e.seeded = true
		}
		return
	}
	k := 2.0 / float64(e.period+1)
	e.value += (price - e.value) * k
}

// Value returns the current average; ok is false until the seed window has
// filled.
func (e *EMA) Value() (float64, bool) {
	return e.value, e.seeded
}

// Period returns the configured period.
func (e *EMA) Period() int {
	return e.period
}

// SMA is a fixed-window simple moving average over a ring of values.
type SMA struct {
	window []float64
	size   int
	head   int
	count  int
	sum    float64
}

// NewSMA creates an SMA with the given window size.
func NewSMA(size int) *SMA {
	return &SMA{window: make([]float64, size), size: size}
}

// Update feeds one value into the window.
func (s *SMA) Update(v float64) {
	if s.count == s.size {
		s.sum -= s.window[s.head]
	} else {
		s.count++
	}
	s.window[s.head] = v
	s.sum += v
	s.head = (s.head + 1) % s.size
}

// Value returns the window mean; ok is false until the window has filled.
func (s *SMA) Value() (float64, bool) {
	if s.count < s.size {
		return 0, false
	}
	return s.sum / float64(s.size), true
}

// Mean returns the mean of however many values have been seen so far.
func (s *SMA) Mean() (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	return s.sum / float64(s.count), true
}
