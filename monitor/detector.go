package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/realtime"
)

// AnomalyStore persists and recalls anomaly records.
type AnomalyStore interface {
	Save(*models.OIAnomalyRecord) error
	GetLatest(symbol string, periodSeconds int) (*models.OIAnomalyRecord, error)
}

// Publisher pushes detected anomalies to live subscribers.
type Publisher interface {
	Broadcast(event string, payload interface{})
}

// Detector sweeps the enabled symbols on a fixed cadence, scanning each
// configured lookback period for an open-interest change beyond the
// effective threshold.
type Detector struct {
	cfg        config.MonitorConfig
	snaps      SnapshotSource
	anomalies  AnomalyStore
	thresholds *ThresholdResolver
	enricher   *Enricher
	broker     Publisher
	symbols    func() []string

	mu       sync.Mutex
	inFlight map[string]bool

	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDetector builds a detector. broker and enricher may be nil.
func NewDetector(cfg config.MonitorConfig, snaps SnapshotSource, anomalies AnomalyStore,
	thresholds *ThresholdResolver, enricher *Enricher, broker Publisher,
	symbols func() []string, log *zap.Logger, m *metrics.Metrics) *Detector {
	return &Detector{
		cfg:        cfg,
		snaps:      snaps,
		anomalies:  anomalies,
		thresholds: thresholds,
		enricher:   enricher,
		broker:     broker,
		symbols:    symbols,
		inFlight:   make(map[string]bool),
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// Run sweeps until ctx is cancelled. The first sweep starts immediately.
func (d *Detector) Run(ctx context.Context) {
	d.Sweep(ctx)
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep scans every enabled symbol once. Symbols still scanning from a
// previous sweep are skipped rather than queued.
func (d *Detector) Sweep(ctx context.Context) {
	start := d.now()
	limit := d.cfg.SweepConcurrency
	if limit <= 0 {
		limit = 8
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, symbol := range d.symbols() {
		if !d.acquire(symbol) {
			d.skip("in_flight")
			continue
		}
		g.Go(func() error {
			defer d.release(symbol)
			d.ScanSymbol(gctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	if d.metrics != nil {
		d.metrics.OISweepDuration.Observe(d.now().Sub(start).Seconds())
	}
}

func (d *Detector) acquire(symbol string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[symbol] {
		return false
	}
	d.inFlight[symbol] = true
	return true
}

func (d *Detector) release(symbol string) {
	d.mu.Lock()
	delete(d.inFlight, symbol)
	d.mu.Unlock()
}

// ScanSymbol checks every configured period for one symbol.
func (d *Detector) ScanSymbol(ctx context.Context, symbol string) {
	for _, period := range d.cfg.Periods {
		if ctx.Err() != nil {
			return
		}
		if err := d.scanPeriod(ctx, symbol, period); err != nil {
			d.log.Warn("scan failed",
				zap.String("symbol", symbol),
				zap.String("period", period),
				zap.Error(err))
		}
	}
}

func (d *Detector) scanPeriod(ctx context.Context, symbol, period string) error {
	periodMs, ok := types.PeriodMs(period)
	if !ok {
		return nil
	}
	if d.metrics != nil {
		d.metrics.OIScansTotal.Inc()
	}

	nowMs := d.now().UnixMilli()
	window, err := d.snaps.GetRange(ctx, symbol, nowMs-periodMs, nowMs)
	if err != nil {
		return err
	}
	if len(window) < 2 {
		d.skip("no_data")
		return nil
	}

	oiBefore := window[0].OpenInterest
	oiAfter := window[len(window)-1].OpenInterest
	if oiBefore == 0 {
		d.skip("no_data")
		return nil
	}
	pc := (oiAfter - oiBefore) / oiBefore * 100

	threshold := d.thresholds.Effective(ctx, symbol, period)
	if math.Abs(pc) < threshold {
		d.skip("below_threshold")
		return nil
	}

	periodSeconds := int(periodMs / 1000)
	prev, err := d.anomalies.GetLatest(symbol, periodSeconds)
	if err != nil {
		return err
	}
	if prev != nil && math.Abs(pc-prev.PercentChange) < d.cfg.DedupDeltaPct {
		d.skip("dedup")
		return nil
	}

	rec := &models.OIAnomalyRecord{
		Symbol:         symbol,
		PeriodSeconds:  periodSeconds,
		OIBefore:       oiBefore,
		OIAfter:        oiAfter,
		PercentChange:  pc,
		ThresholdValue: threshold,
		Severity:       d.severity(pc),
		AnomalyTime:    d.now().UTC(),
	}
	if d.enricher != nil && !d.cfg.EnrichmentDisabled {
		d.enricher.Enrich(ctx, rec, window)
	}

	if err := d.anomalies.Save(rec); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.OIAnomalies.WithLabelValues(rec.Severity).Inc()
	}
	if d.broker != nil {
		d.broker.Broadcast(realtime.EventAnomaly, rec)
	}
	d.log.Info("oi anomaly",
		zap.String("symbol", symbol),
		zap.String("period", period),
		zap.Float64("percent_change", pc),
		zap.Float64("threshold", threshold),
		zap.String("severity", rec.Severity))
	return nil
}

// severity buckets are inclusive on the lower edge.
func (d *Detector) severity(pc float64) string {
	abs := math.Abs(pc)
	switch {
	case abs >= d.cfg.SeverityHighPct:
		return "high"
	case abs >= d.cfg.SeverityMediumPct:
		return "medium"
	default:
		return "low"
	}
}

func (d *Detector) skip(reason string) {
	if d.metrics != nil {
		d.metrics.OIScanSkips.WithLabelValues(reason).Inc()
	}
}
