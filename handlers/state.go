package handlers

import (
	"sync"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
)

// MarkPriceTable holds the latest mark price / funding observation per
// symbol, maintained from the mark-price stream. The OI poller merges these
// into snapshots at capture time.
type MarkPriceTable struct {
	mu    sync.RWMutex
	state map[string]types.MarkPriceState
}

// NewMarkPriceTable creates an empty mark price table.
func NewMarkPriceTable() *MarkPriceTable {
	return &MarkPriceTable{state: make(map[string]types.MarkPriceState)}
}

// Update stores the latest observation for a symbol.
func (t *MarkPriceTable) Update(s types.MarkPriceState) {
	t.mu.Lock()
	t.state[s.Symbol] = s
	t.mu.Unlock()
}

// Get returns the latest observation for a symbol.
func (t *MarkPriceTable) Get(symbol string) (types.MarkPriceState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.state[symbol]
	return s, ok
}

// All returns a copy of the current table.
func (t *MarkPriceTable) All() map[string]types.MarkPriceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]types.MarkPriceState, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// TickerTable holds the rolling 24h statistics per symbol from the ticker
// stream. The S/R alert gate reads the 24h gain from here.
type TickerTable struct {
	mu    sync.RWMutex
	state map[string]types.TickerStats
}

// NewTickerTable creates an empty ticker table.
func NewTickerTable() *TickerTable {
	return &TickerTable{state: make(map[string]types.TickerStats)}
}

// Update stores the latest statistics for a symbol.
func (t *TickerTable) Update(s types.TickerStats) {
	t.mu.Lock()
	t.state[s.Symbol] = s
	t.mu.Unlock()
}

// Get returns the latest statistics for a symbol.
func (t *TickerTable) Get(symbol string) (types.TickerStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.state[symbol]
	return s, ok
}
