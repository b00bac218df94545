package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/handlers"
)

// MAPeriods are the mark-price moving average lengths attached to anomaly
// records.
var MAPeriods = []int{10, 30, 60, 120, 240}

// trend label epsilon: averages within 0.05% of each other read as flat.
const trendEpsilonPct = 0.05

// MASet is one enrichment result: the computed averages (nil when the ring
// holds fewer samples than the period) and the derived trend labels.
type MASet struct {
	MA    map[int]*float64
	Short *string // sign of MA10 - MA30
	Long  *string // MA60 vs MA120 vs MA240 ordering
}

// MarkSampler keeps a per-symbol ring of one-minute mark price samples and
// computes the MA10..MA240 enrichment set from them.
type MarkSampler struct {
	source   *handlers.MarkPriceTable
	capacity int
	interval time.Duration

	mu    sync.RWMutex
	rings map[string][]float64
}

// NewMarkSampler builds a sampler reading from the live mark price table.
func NewMarkSampler(source *handlers.MarkPriceTable, capacity int) *MarkSampler {
	if capacity <= 0 {
		capacity = 240
	}
	return &MarkSampler{
		source:   source,
		capacity: capacity,
		interval: time.Minute,
		rings:    make(map[string][]float64),
	}
}

// Run samples every symbol in the mark price table once per minute until
// ctx is cancelled.
func (s *MarkSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleAll()
		}
	}
}

func (s *MarkSampler) sampleAll() {
	for symbol, state := range s.source.All() {
		s.Add(symbol, state.MarkPrice)
	}
}

// Add appends one sample to a symbol's ring, evicting the oldest at cap.
func (s *MarkSampler) Add(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ring := s.rings[symbol]
	if len(ring) == s.capacity {
		copy(ring, ring[1:])
		ring = ring[:s.capacity-1]
	}
	s.rings[symbol] = append(ring, price)
}

// Averages computes the MA set for a symbol from the newest samples.
func (s *MarkSampler) Averages(symbol string) MASet {
	s.mu.RLock()
	ring := s.rings[symbol]
	samples := make([]float64, len(ring))
	copy(samples, ring)
	s.mu.RUnlock()

	set := MASet{MA: make(map[int]*float64, len(MAPeriods))}
	for _, p := range MAPeriods {
		if len(samples) < p {
			set.MA[p] = nil
			continue
		}
		var sum float64
		for _, v := range samples[len(samples)-p:] {
			sum += v
		}
		avg := sum / float64(p)
		set.MA[p] = &avg
	}

	set.Short = trendOf2(set.MA[10], set.MA[30])
	set.Long = trendOf3(set.MA[60], set.MA[120], set.MA[240])
	return set
}

// trendOf2 labels the relation of a faster and slower average.
func trendOf2(fast, slow *float64) *string {
	if fast == nil || slow == nil {
		return nil
	}
	return label(compare(*fast, *slow))
}

// trendOf3 labels a three-average ordering: up when strictly descending by
// period (fast above slow), down for the inverse, flat otherwise.
func trendOf3(a, b, c *float64) *string {
	if a == nil || b == nil || c == nil {
		return nil
	}
	ab, bc := compare(*a, *b), compare(*b, *c)
	switch {
	case ab > 0 && bc > 0:
		return label(1)
	case ab < 0 && bc < 0:
		return label(-1)
	default:
		return label(0)
	}
}

// compare returns the sign of a-b with the flat epsilon applied.
func compare(a, b float64) int {
	if b == 0 {
		return 0
	}
	diffPct := (a - b) / b * 100
	switch {
	case diffPct > trendEpsilonPct:
		return 1
	case diffPct < -trendEpsilonPct:
		return -1
	default:
		return 0
	}
}

func label(sign int) *string {
	var s string
	switch {
	case sign > 0:
		s = "up"
	case sign < 0:
		s = "down"
	default:
		s = "flat"
	}
	return &s
}
