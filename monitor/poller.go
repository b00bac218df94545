package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/exchange"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/handlers"
	"golang.org/x/sync/errgroup"
)

// SnapshotSink accepts snapshot batches for asynchronous persistence.
type SnapshotSink interface {
	Enqueue(ctx context.Context, batch []types.OISnapshot) bool
}

// OIPoller captures one open-interest snapshot per enabled symbol per
// cycle, merging the live mark price table into each row before handing
// the batch to the store's writer.
type OIPoller struct {
	client    *exchange.Client
	marks     *handlers.MarkPriceTable
	sink      SnapshotSink
	symbols   func() []string
	interval  time.Duration
	sourceTag string
	parallel  int
	log       *zap.Logger
}

// NewOIPoller builds a poller over the enabled-symbol provider.
func NewOIPoller(client *exchange.Client, marks *handlers.MarkPriceTable, sink SnapshotSink,
	symbols func() []string, interval time.Duration, sourceTag string, parallel int, log *zap.Logger) *OIPoller {
	if parallel <= 0 {
		parallel = 8
	}
	return &OIPoller{
		client:    client,
		marks:     marks,
		sink:      sink,
		symbols:   symbols,
		interval:  interval,
		sourceTag: sourceTag,
		parallel:  parallel,
		log:       log,
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (p *OIPoller) Run(ctx context.Context) {
	p.cycle(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *OIPoller) cycle(ctx context.Context) {
	symbols := p.symbols()
	results := make([]*types.OISnapshot, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	for i, symbol := range symbols {
		g.Go(func() error {
			snap, err := p.capture(gctx, symbol)
			if err != nil {
				p.log.Debug("oi poll failed", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]types.OISnapshot, 0, len(results))
	for _, snap := range results {
		if snap != nil {
			batch = append(batch, *snap)
		}
	}
	if len(batch) == 0 {
		return
	}
	if !p.sink.Enqueue(ctx, batch) {
		p.log.Warn("snapshot writer queue full, batch dropped", zap.Int("rows", len(batch)))
	}
}

// capture fetches one OI reading and merges the stream's latest mark
// price state into it.
func (p *OIPoller) capture(ctx context.Context, symbol string) (*types.OISnapshot, error) {
	oi, err := p.client.GetOpenInterest(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap := &types.OISnapshot{
		Symbol:       symbol,
		OpenInterest: oi.OpenInterest,
		TimestampMs:  oi.TimeMs,
		SnapshotTime: time.Now().UTC(),
		Source:       p.sourceTag,
	}
	if snap.TimestampMs == 0 {
		snap.TimestampMs = snap.SnapshotTime.UnixMilli()
	}
	if state, ok := p.marks.Get(symbol); ok {
		mark, funding, next := state.MarkPrice, state.FundingRate, state.NextFundingMs
		snap.MarkPrice = &mark
		snap.FundingRate = &funding
		snap.NextFundingTime = &next
	}
	return snap, nil
}
