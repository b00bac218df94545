package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// getIntParam retrieves an integer query parameter with a default and an
// upper bound.
func getIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		return defaultVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// getTimeParam parses a since= parameter as RFC3339 or unix seconds. Zero
// time when absent or unparseable.
func getTimeParam(r *http.Request, key string) time.Time {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, valStr); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		s.log.Warn("api error", zap.Int("status", code), zap.String("message", message), zap.Error(err))
	}
	s.respondJSON(w, code, map[string]string{"error": message})
}
