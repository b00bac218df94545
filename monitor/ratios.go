package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/exchange"
)

// RatioPoller keeps the latest long/short ratio sample per symbol for
// anomaly enrichment. Ratio endpoints update on exchange-side 5m buckets,
// so the poll cadence is coarse.
type RatioPoller struct {
	client   *exchange.Client
	symbols  func() []string
	interval time.Duration
	log      *zap.Logger

	mu     sync.RWMutex
	latest map[string]types.LongShortRatio
}

// NewRatioPoller builds a poller over the enabled-symbol provider.
func NewRatioPoller(client *exchange.Client, symbols func() []string, interval time.Duration, log *zap.Logger) *RatioPoller {
	return &RatioPoller{
		client:   client,
		symbols:  symbols,
		interval: interval,
		log:      log,
		latest:   make(map[string]types.LongShortRatio),
	}
}

// Run polls until ctx is cancelled. The first poll starts immediately.
func (p *RatioPoller) Run(ctx context.Context) {
	p.poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *RatioPoller) poll(ctx context.Context) {
	for _, symbol := range p.symbols() {
		if ctx.Err() != nil {
			return
		}
		ratios, err := p.client.GetLongShortRatios(ctx, symbol)
		if err != nil {
			p.log.Debug("ratio poll failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		p.mu.Lock()
		p.latest[symbol] = types.LongShortRatio{
			Symbol:         symbol,
			GlobalAccount:  ratios.GlobalAccount,
			TopTraderPos:   ratios.TopTraderPos,
			TopTraderAccts: ratios.TopTraderAccts,
			TimestampMs:    ratios.TimestampMs,
		}
		p.mu.Unlock()
	}
}

// Latest returns the newest sample for a symbol.
func (p *RatioPoller) Latest(symbol string) (types.LongShortRatio, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.latest[symbol]
	return r, ok
}

// Set stores a sample directly. Used by tests and backfills.
func (p *RatioPoller) Set(r types.LongShortRatio) {
	p.mu.Lock()
	p.latest[r.Symbol] = r
	p.mu.Unlock()
}
