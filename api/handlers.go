package api

import (
	"context"
	"net/http"
	"time"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/cache"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database"
	alertsdb "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/alerts"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/anomalies"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	statsTopN    = 10
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	code := http.StatusOK
	status := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	s.respondJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := anomalies.ListFilter{
		Symbol:   q.Get("symbol"),
		Severity: q.Get("severity"),
		Since:    getTimeParam(r, "since"),
		Limit:    getIntParam(r, "limit", defaultLimit, maxLimit),
	}
	if period := q.Get("period"); period != "" {
		ms, ok := types.PeriodMs(period)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "unknown period", nil)
			return
		}
		filter.PeriodSeconds = int(ms / 1000)
	}

	key := cache.AnomalyListKey(map[string]string{
		"symbol":   filter.Symbol,
		"period":   q.Get("period"),
		"severity": filter.Severity,
		"since":    q.Get("since"),
		"limit":    q.Get("limit"),
	})

	var out []models.OIAnomalyRecord
	err := s.cache.GetOrLoad(r.Context(), "anomalies", key, cache.TTLAnomalyList, &out,
		func(context.Context) (interface{}, error) {
			return s.anomalies.List(filter)
		})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list anomalies", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"anomalies": out, "count": len(out)})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := alertsdb.ListFilter{
		Symbol:    q.Get("symbol"),
		Interval:  q.Get("interval"),
		AlertType: q.Get("type"),
		Since:     getTimeParam(r, "since"),
		Limit:     getIntParam(r, "limit", defaultLimit, maxLimit),
	}

	volume, err := s.alerts.ListVolumeAlerts(filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list alerts", err)
		return
	}
	sr, err := s.alerts.ListSRAlerts(filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list alerts", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"volume_alerts": volume,
		"sr_alerts":     sr,
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := alertsdb.ListFilter{
		Symbol: q.Get("symbol"),
		Since:  getTimeParam(r, "since"),
		Limit:  getIntParam(r, "limit", defaultLimit, maxLimit),
	}
	signals, err := s.alerts.ListBreakoutSignals(filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list signals", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"signals": signals, "count": len(signals)})
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = database.ShardDateOf(time.Now())
	}

	var out anomalies.DailyStats
	err := s.cache.GetOrLoad(r.Context(), "stats", cache.StatsKey(date), cache.TTLDailyStats, &out,
		func(context.Context) (interface{}, error) {
			return s.anomalies.GetDailyStats(date, statsTopN)
		})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to compute stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.symbols.Enabled(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list symbols", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"symbols": enabled, "count": len(enabled)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	s.respondJSON(w, http.StatusOK, s.status())
}
