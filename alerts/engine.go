package alerts

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/helpers"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/patterns"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/realtime"
)

// AlertStore is the persistence surface the engine needs. Save methods
// return false when the row was dropped by duplicate suppression.
type AlertStore interface {
	SaveVolumeAlert(*models.VolumeAlert) (bool, error)
	SaveSRAlert(*models.SRAlert) (bool, error)
}

// Publisher pushes emitted alerts to live subscribers.
type Publisher interface {
	Broadcast(event string, payload interface{})
}

type cooldownEntry struct {
	at         time.Time
	squeezePct float64
}

// Engine gates detector hits through the cooldown window and duplicate
// suppression, persists survivors, and fans them out to the realtime
// broker and the batch collector.
type Engine struct {
	cooldown  time.Duration
	store     AlertStore
	broker    Publisher
	collector *Collector

	mu   sync.Mutex
	seen map[string]cooldownEntry

	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine builds an alert engine. broker and collector may be nil.
func NewEngine(cooldown time.Duration, store AlertStore, broker Publisher, collector *Collector, log *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		cooldown:  cooldown,
		store:     store,
		broker:    broker,
		collector: collector,
		seen:      make(map[string]cooldownEntry),
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// cooldownKey scopes the cooldown per symbol, interval, alert type and,
// for level alerts, per level, so alerts on distinct levels never starve
// each other.
func cooldownKey(h *patterns.Hit) string {
	key := h.Symbol + "|" + h.Interval + "|" + h.Type
	if h.Type == patterns.AlertTouched || h.Type == patterns.AlertApproaching {
		key += "|" + helpers.FormatPrice(h.LevelPrice)
	}
	return key
}

// Process runs one detector hit through the gates. Returns true when the
// alert was emitted.
func (e *Engine) Process(h *patterns.Hit) (bool, error) {
	key := cooldownKey(h)
	now := e.now()

	e.mu.Lock()
	prev, seen := e.seen[key]
	inCooldown := seen && now.Sub(prev.at) < e.cooldown

	// A squeeze that has tightened further since the last alert is new
	// information; it bypasses the cooldown.
	if inCooldown && h.Type == patterns.AlertSqueeze && h.SqueezePct < prev.squeezePct {
		inCooldown = false
	}
	if inCooldown {
		e.mu.Unlock()
		e.suppress("cooldown")
		return false, nil
	}
	e.seen[key] = cooldownEntry{at: now, squeezePct: h.SqueezePct}
	e.mu.Unlock()

	saved, err := e.persist(h)
	if err != nil {
		return false, err
	}
	if !saved {
		e.suppress("duplicate")
		return false, nil
	}

	if e.metrics != nil {
		e.metrics.AlertsEmitted.WithLabelValues(h.Type).Inc()
	}
	if e.broker != nil {
		e.broker.Broadcast(realtime.EventAlert, h)
	}
	if e.collector != nil {
		e.collector.Add(h)
	}
	e.log.Info("alert emitted",
		zap.String("symbol", h.Symbol),
		zap.String("interval", h.Interval),
		zap.String("type", h.Type),
		zap.Float64("price", h.Price))
	return true, nil
}

func (e *Engine) suppress(reason string) {
	if e.metrics != nil {
		e.metrics.AlertsSuppressed.WithLabelValues(reason).Inc()
	}
}

func (e *Engine) persist(h *patterns.Hit) (bool, error) {
	switch h.Type {
	case patterns.AlertVolumeSurge, patterns.AlertHammer, patterns.AlertPerfectHammer,
		patterns.AlertDoji, patterns.AlertBullishStreak:
		saved, err := e.store.SaveVolumeAlert(volumeAlertRow(h))
		if err != nil {
			return false, fmt.Errorf("persist %s: %w", h.Type, err)
		}
		return saved, nil

	case patterns.AlertTouched, patterns.AlertApproaching,
		patterns.AlertSqueeze, patterns.AlertPullbackReady:
		saved, err := e.store.SaveSRAlert(srAlertRow(h))
		if err != nil {
			return false, fmt.Errorf("persist %s: %w", h.Type, err)
		}
		return saved, nil

	default:
		return false, fmt.Errorf("persist: unknown alert type %q", h.Type)
	}
}

func volumeAlertRow(h *patterns.Hit) *models.VolumeAlert {
	return &models.VolumeAlert{
		Symbol:         h.Symbol,
		Interval:       h.Interval,
		AlertType:      h.Type,
		KlineTime:      h.KlineTime,
		CurrentPrice:   h.Price,
		Volume:         h.Volume,
		BaselineVolume: h.BaselineVolume,
		VolumeMultiple: h.VolumeMultiple,
		TierLevel:      h.TierLevel,
		Provisional:    h.Provisional,
		Description:    h.Description,
	}
}

func srAlertRow(h *patterns.Hit) *models.SRAlert {
	row := &models.SRAlert{
		Symbol:       h.Symbol,
		Interval:     h.Interval,
		AlertType:    h.Type,
		KlineTime:    h.KlineTime,
		LevelKey:     "-",
		CurrentPrice: h.Price,
		Description:  h.Description,
	}
	if h.LevelType != "" {
		row.LevelType = ptr(h.LevelType)
		row.LevelKey = helpers.FormatPrice(h.LevelPrice)
		row.LevelPrice = ptr(h.LevelPrice)
		row.LevelStrength = ptr(h.LevelStrength)
		row.DistancePct = ptr(h.DistancePct)
	}
	if h.Type == patterns.AlertSqueeze {
		row.SqueezePct = ptr(h.SqueezePct)
	}
	if h.Type == patterns.AlertPullbackReady {
		row.RetracePct = ptr(h.RetracePct)
		row.VolumeShrinkPct = ptr(h.VolumeShrinkPct)
	}
	if h.Gain24hPct != 0 {
		row.Gain24hPct = ptr(h.Gain24hPct)
	}
	if p := h.Breakout; p != nil {
		row.BreakoutScore = ptr(p.TotalScore)
		row.VolatilityScore = ptr(p.VolatilityScore)
		row.VolumeScore = ptr(p.VolumeScore)
		row.MAConvergenceScore = ptr(p.MAConvergenceScore)
		row.PositionScore = ptr(p.PositionScore)
		row.PatternScore = ptr(p.PatternScore)
		row.PredictedDirection = ptr(p.Direction)
	}
	return row
}

func ptr[T any](v T) *T { return &v }
