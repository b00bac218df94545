package monitor

import (
	"context"
	"time"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/handlers"
)

// SnapshotSource is the read surface the detector and enricher need from
// the sharded snapshot store.
type SnapshotSource interface {
	GetRange(ctx context.Context, symbol string, fromMs, toMs int64) ([]types.OISnapshot, error)
	GetDailyExtremes(ctx context.Context, symbol, date string) (low, high float64, err error)
}

// Enricher fills the optional context fields of an anomaly record from the
// feeds available at scan time. Every input is best-effort: missing feeds
// leave their fields nil and never fail the record.
type Enricher struct {
	snaps   SnapshotSource
	marks   *handlers.MarkPriceTable
	ratios  *RatioPoller
	sampler *MarkSampler
	now     func() time.Time
}

// NewEnricher builds an enricher over the live feeds. Any source may be
// nil; its fields are then left empty.
func NewEnricher(snaps SnapshotSource, marks *handlers.MarkPriceTable, ratios *RatioPoller, sampler *MarkSampler) *Enricher {
	return &Enricher{snaps: snaps, marks: marks, ratios: ratios, sampler: sampler, now: time.Now}
}

// Enrich decorates rec in place. window is the snapshot range the anomaly
// was detected over, oldest first.
func (e *Enricher) Enrich(ctx context.Context, rec *models.OIAnomalyRecord, window []types.OISnapshot) {
	e.priceAndFunding(rec, window)
	e.dailyExtremes(ctx, rec)
	e.recentRanges(ctx, rec)
	e.positioning(rec)
	e.movingAverages(rec)
}

// priceAndFunding reads the window edges for before/after context and the
// live table (falling back to the newest snapshot) for the current price.
func (e *Enricher) priceAndFunding(rec *models.OIAnomalyRecord, window []types.OISnapshot) {
	if len(window) > 0 {
		first, last := window[0], window[len(window)-1]
		if first.MarkPrice != nil && last.MarkPrice != nil {
			rec.PriceBefore = first.MarkPrice
			rec.PriceAfter = last.MarkPrice
			if *first.MarkPrice > 0 {
				pct := (*last.MarkPrice - *first.MarkPrice) / *first.MarkPrice * 100
				rec.PriceChangePct = &pct
			}
		}
		rec.FundingBefore = first.FundingRate
		rec.FundingAfter = last.FundingRate
	}

	if e.marks == nil {
		return
	}
	if state, ok := e.marks.Get(rec.Symbol); ok && state.MarkPrice > 0 {
		price := state.MarkPrice
		rec.PriceAfter = &price
		if rec.PriceBefore != nil && *rec.PriceBefore > 0 {
			pct := (price - *rec.PriceBefore) / *rec.PriceBefore * 100
			rec.PriceChangePct = &pct
		}
	}
}

// dailyExtremes attaches today's shard MIN/MAX mark price and distances.
func (e *Enricher) dailyExtremes(ctx context.Context, rec *models.OIAnomalyRecord) {
	if e.snaps == nil {
		return
	}
	low, high, err := e.snaps.GetDailyExtremes(ctx, rec.Symbol, database.ShardDateOf(e.now()))
	if err != nil {
		return
	}
	rec.Low24h = &low
	rec.High24h = &high
	if rec.PriceAfter == nil {
		return
	}
	price := *rec.PriceAfter
	if high > 0 {
		d := (high - price) / high * 100
		rec.DistFromHigh24hPct = &d
	}
	if low > 0 {
		d := (price - low) / low * 100
		rec.DistFromLow24hPct = &d
	}
}

// recentRanges attaches the 2h low and the 30m high/low with breakout
// booleans against the current price.
func (e *Enricher) recentRanges(ctx context.Context, rec *models.OIAnomalyRecord) {
	if e.snaps == nil || rec.PriceAfter == nil {
		return
	}
	price := *rec.PriceAfter
	nowMs := e.now().UnixMilli()

	if low, _, ok := e.rangeExtremes(ctx, rec.Symbol, nowMs-2*3_600_000, nowMs); ok {
		rec.Low2h = &low
		if low > 0 {
			d := (price - low) / low * 100
			rec.DistFromLow2hPct = &d
		}
	}

	if low, high, ok := e.rangeExtremes(ctx, rec.Symbol, nowMs-30*60_000, nowMs); ok {
		rec.Low30m = &low
		rec.High30m = &high
		brokeHigh := price > high
		brokeLow := price < low
		rec.Broke30mHigh = &brokeHigh
		rec.Broke30mLow = &brokeLow
	}
}

// rangeExtremes scans a snapshot range for priced rows. ok is false when
// the range holds none.
func (e *Enricher) rangeExtremes(ctx context.Context, symbol string, fromMs, toMs int64) (low, high float64, ok bool) {
	snaps, err := e.snaps.GetRange(ctx, symbol, fromMs, toMs)
	if err != nil {
		return 0, 0, false
	}
	for _, s := range snaps {
		if s.MarkPrice == nil || *s.MarkPrice <= 0 {
			continue
		}
		p := *s.MarkPrice
		if !ok {
			low, high, ok = p, p, true
			continue
		}
		if p < low {
			low = p
		}
		if p > high {
			high = p
		}
	}
	return low, high, ok
}

func (e *Enricher) positioning(rec *models.OIAnomalyRecord) {
	if e.ratios == nil {
		return
	}
	if r, ok := e.ratios.Latest(rec.Symbol); ok {
		global, top := r.GlobalAccount, r.TopTraderPos
		rec.GlobalLongShortRatio = &global
		rec.TopTraderLongShortRatio = &top
	}
}

func (e *Enricher) movingAverages(rec *models.OIAnomalyRecord) {
	if e.sampler == nil {
		return
	}
	set := e.sampler.Averages(rec.Symbol)
	rec.MA10 = set.MA[10]
	rec.MA30 = set.MA[30]
	rec.MA60 = set.MA[60]
	rec.MA120 = set.MA[120]
	rec.MA240 = set.MA[240]
	rec.TrendShort = set.Short
	rec.TrendLong = set.Long
}
