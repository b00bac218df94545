package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the surveillance engine.
type Metrics struct {
	registry *prometheus.Registry

	// Stream ingestion
	StreamEventsTotal  *prometheus.CounterVec // labels: type
	StreamParseErrors  prometheus.Counter
	StreamReconnects   prometheus.Counter
	StreamDroppedTotal *prometheus.CounterVec // labels: channel

	// Storage
	SnapshotsWritten    prometheus.Counter
	SnapshotWriteErrors prometheus.Counter
	CandlesWritten      prometheus.Counter
	CandleBufferSize    prometheus.Gauge
	CandleFlushDur      prometheus.Histogram

	// Open interest monitoring
	OIScansTotal    prometheus.Counter
	OIAnomalies     *prometheus.CounterVec // labels: severity
	OIScanSkips     *prometheus.CounterVec // labels: reason
	OISweepDuration prometheus.Histogram

	// Pattern detection
	PatternHitsTotal *prometheus.CounterVec // labels: type, interval

	// Alerting
	AlertsEmitted    *prometheus.CounterVec // labels: type
	AlertsSuppressed *prometheus.CounterVec // labels: reason
	BatchFlushes     prometheus.Counter
	BatchSignals     prometheus.Counter

	// Cache
	CacheHits   *prometheus.CounterVec // labels: domain
	CacheMisses *prometheus.CounterVec // labels: domain
}

// New registers and returns all Prometheus metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		StreamEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_stream_events_total",
			Help: "Total stream events parsed (by event type)",
		}, []string{"type"}),
		StreamParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_stream_parse_errors_total",
			Help: "Stream frames that failed to parse",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_stream_reconnects_total",
			Help: "WebSocket reconnection attempts",
		}),
		StreamDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_stream_dropped_events_total",
			Help: "Events dropped due to full pipeline channels",
		}, []string{"channel"}),

		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_snapshots_written_total",
			Help: "Open interest snapshot rows written",
		}),
		SnapshotWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_snapshot_write_errors_total",
			Help: "Open interest snapshot batches that failed to persist",
		}),
		CandlesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_candles_written_total",
			Help: "Candle rows written to shard tables",
		}),
		CandleBufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surveil_candle_buffer_size",
			Help: "Candles currently buffered awaiting flush",
		}),
		CandleFlushDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveil_candle_flush_duration_seconds",
			Help:    "Candle batch flush latency",
			Buckets: prometheus.DefBuckets,
		}),

		OIScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_oi_scans_total",
			Help: "Per-symbol open interest scans executed",
		}),
		OIAnomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_oi_anomalies_total",
			Help: "Open interest anomalies recorded (by severity)",
		}, []string{"severity"}),
		OIScanSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_oi_scan_skips_total",
			Help: "Scans skipped (no_data, below_threshold, dedup, in_flight)",
		}, []string{"reason"}),
		OISweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveil_oi_sweep_duration_seconds",
			Help:    "Full sweep latency across enabled symbols",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		PatternHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_pattern_hits_total",
			Help: "Detector matches before alert gating (by type and interval)",
		}, []string{"type", "interval"}),

		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_alerts_emitted_total",
			Help: "Alerts emitted after gating (by alert type)",
		}, []string{"type"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_alerts_suppressed_total",
			Help: "Alerts suppressed (cooldown, duplicate)",
		}, []string{"reason"}),
		BatchFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_batch_flushes_total",
			Help: "Batch signal collector flushes",
		}),
		BatchSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveil_batch_signals_total",
			Help: "Signals delivered through batch flushes",
		}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_cache_hits_total",
			Help: "Cache hits (by domain)",
		}, []string{"domain"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveil_cache_misses_total",
			Help: "Cache misses (by domain)",
		}, []string{"domain"}),
	}

	m.registry.MustRegister(
		m.StreamEventsTotal,
		m.StreamParseErrors,
		m.StreamReconnects,
		m.StreamDroppedTotal,
		m.SnapshotsWritten,
		m.SnapshotWriteErrors,
		m.CandlesWritten,
		m.CandleBufferSize,
		m.CandleFlushDur,
		m.OIScansTotal,
		m.OIAnomalies,
		m.OIScanSkips,
		m.OISweepDuration,
		m.PatternHitsTotal,
		m.AlertsEmitted,
		m.AlertsSuppressed,
		m.BatchFlushes,
		m.BatchSignals,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
