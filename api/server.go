package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/cache"
	alertsdb "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/alerts"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/anomalies"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/realtime"
)

// AnomalySource is the anomaly read surface the API serves.
type AnomalySource interface {
	List(anomalies.ListFilter) ([]models.OIAnomalyRecord, error)
	GetDailyStats(date string, topN int) (*anomalies.DailyStats, error)
}

// AlertSource is the alert read surface.
type AlertSource interface {
	ListVolumeAlerts(alertsdb.ListFilter) ([]models.VolumeAlert, error)
	ListSRAlerts(alertsdb.ListFilter) ([]models.SRAlert, error)
	ListBreakoutSignals(alertsdb.ListFilter) ([]models.BreakoutSignal, error)
}

// SymbolSource resolves the enabled symbol set.
type SymbolSource interface {
	Enabled(ctx context.Context) ([]string, error)
}

// Pinger is a dependency health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusFunc supplies the runtime state snapshot for /api/status.
type StatusFunc func() map[string]interface{}

// Server is the read-only HTTP surface: health, metrics, anomaly and alert
// listings, daily stats, the enabled symbol set and the SSE event feed.
type Server struct {
	anomalies AnomalySource
	alerts    AlertSource
	symbols   SymbolSource
	cache     *cache.MarketCache
	broker    *realtime.Broker
	metricsH  http.Handler
	db        Pinger
	redis     Pinger
	status    StatusFunc
	log       *zap.Logger
}

// NewServer creates the API server. broker, metrics handler, pingers and
// status may be nil; their endpoints then degrade gracefully.
func NewServer(anoms AnomalySource, alerts AlertSource, symbols SymbolSource, mc *cache.MarketCache,
	broker *realtime.Broker, metricsHandler http.Handler, db, redis Pinger, status StatusFunc, log *zap.Logger) *Server {
	return &Server{
		anomalies: anoms,
		alerts:    alerts,
		symbols:   symbols,
		cache:     mc,
		broker:    broker,
		metricsH:  metricsHandler,
		db:        db,
		redis:     redis,
		status:    status,
		log:       log,
	}
}

// Handler builds the route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metricsH != nil {
		mux.Handle("GET /metrics", s.metricsH)
	}
	if s.broker != nil {
		mux.Handle("GET /api/events", s.broker)
	}
	mux.HandleFunc("GET /api/anomalies", s.handleAnomalies)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/stats/daily", s.handleDailyStats)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	return s.corsMiddleware(s.requestIDMiddleware(mux))
}

// Start runs the server until ctx is cancelled, then shuts down with a 5s
// grace period.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
