package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/patterns"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/realtime"
)

// BatchStore persists flushed collector batches.
type BatchStore interface {
	SaveBreakoutSignals([]*models.BreakoutSignal) error
}

// bucket is the open collection window for one candle close.
type bucket struct {
	timer   *time.Timer
	pending map[string]*models.BreakoutSignal
}

// Collector groups selected alert types arriving within a short window
// into one batch per candle close, so a market-wide move produces a
// single wave with a shared batch ID instead of a stream of single
// signals. Each kline_time gets its own window and timer; a late signal
// for the next candle never extends or reuses the previous window.
type Collector struct {
	window   time.Duration
	collects map[string]bool
	store    BatchStore
	broker   Publisher

	mu      sync.Mutex
	buckets map[int64]*bucket

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCollector builds a batch collector for the given alert types.
func NewCollector(window time.Duration, types []string, store BatchStore, broker Publisher, log *zap.Logger, m *metrics.Metrics) *Collector {
	collects := make(map[string]bool, len(types))
	for _, t := range types {
		collects[t] = true
	}
	return &Collector{
		window:   window,
		collects: collects,
		store:    store,
		broker:   broker,
		buckets:  make(map[int64]*bucket),
		log:      log,
		metrics:  m,
	}
}

// Add offers one emitted alert to the collector. Types outside the
// collected set are ignored. The first signal of a kline_time opens its
// window and arms the flush timer; later signals for the same candle
// join that batch without resetting the timer.
func (c *Collector) Add(h *patterns.Hit) {
	if !c.collects[h.Type] {
		return
	}

	sig := &models.BreakoutSignal{
		Symbol:       h.Symbol,
		Interval:     h.Interval,
		AlertType:    h.Type,
		KlineTime:    h.KlineTime,
		CurrentPrice: h.Price,
		Description:  h.Description,
	}
	if p := h.Breakout; p != nil {
		sig.BreakoutScore = ptr(p.TotalScore)
		sig.PredictedDirection = ptr(p.Direction)
	}
	key := h.Symbol + "|" + h.Interval + "|" + h.Type

	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[h.KlineTime]
	if !ok {
		kt := h.KlineTime
		b = &bucket{pending: make(map[string]*models.BreakoutSignal)}
		b.timer = time.AfterFunc(c.window, func() { c.flushBucket(kt) })
		c.buckets[kt] = b
	}
	b.pending[key] = sig
}

// flushBucket closes one candle's window when its timer fires.
func (c *Collector) flushBucket(klineTime int64) {
	c.mu.Lock()
	b, ok := c.buckets[klineTime]
	if ok {
		delete(c.buckets, klineTime)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.emit(b)
}

// Flush drains every open window immediately. Runs on shutdown; each
// window still flushes as its own batch with its own ID.
func (c *Collector) Flush() {
	c.mu.Lock()
	open := c.buckets
	c.buckets = make(map[int64]*bucket)
	c.mu.Unlock()

	for _, b := range open {
		b.timer.Stop()
		c.emit(b)
	}
}

// emit assigns the bucket's signals a shared batch ID, persists them and
// broadcasts the wave.
func (c *Collector) emit(b *bucket) {
	if len(b.pending) == 0 {
		return
	}
	batchID := uuid.NewString()
	batch := make([]*models.BreakoutSignal, 0, len(b.pending))
	for _, sig := range b.pending {
		sig.BatchID = batchID
		batch = append(batch, sig)
	}

	if err := c.store.SaveBreakoutSignals(batch); err != nil {
		c.log.Error("batch flush failed",
			zap.String("batch_id", batchID),
			zap.Int("signals", len(batch)),
			zap.Error(err))
		return
	}

	if c.metrics != nil {
		c.metrics.BatchFlushes.Inc()
		c.metrics.BatchSignals.Add(float64(len(batch)))
	}
	if c.broker != nil {
		c.broker.Broadcast(realtime.EventBatch, map[string]interface{}{
			"batch_id": batchID,
			"signals":  batch,
		})
	}
	c.log.Info("batch flushed", zap.String("batch_id", batchID), zap.Int("signals", len(batch)))
}

// PendingCount returns the number of signals waiting across all open
// windows.
func (c *Collector) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.buckets {
		n += len(b.pending)
	}
	return n
}
