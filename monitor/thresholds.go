package monitor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/cache"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/monitorcfg"
)

// ThresholdSource resolves runtime threshold overrides from the config
// table.
type ThresholdSource interface {
	GetThreshold(symbol, period string) (float64, error)
}

// ThresholdResolver answers "what threshold applies to (symbol, period)"
// with a read-through cache in front of the config table. The per-symbol
// override wins over the per-period default; the env global closes the
// chain.
type ThresholdResolver struct {
	repo       ThresholdSource
	cache      *cache.MarketCache
	defaultPct float64
	log        *zap.Logger
}

// NewThresholdResolver builds a resolver. cache may be nil-backed; the
// loader then runs on every call.
func NewThresholdResolver(repo ThresholdSource, mc *cache.MarketCache, defaultPct float64, log *zap.Logger) *ThresholdResolver {
	return &ThresholdResolver{repo: repo, cache: mc, defaultPct: defaultPct, log: log}
}

// Effective returns the threshold percent for (symbol, period). Lookup
// failures fall back to the global default rather than blocking the scan.
func (r *ThresholdResolver) Effective(ctx context.Context, symbol, period string) float64 {
	key := cache.ConfigKey("threshold:" + symbol + ":" + period)

	var pct float64
	err := r.cache.GetOrLoad(ctx, "config", key, cache.TTLConfigKey, &pct, func(ctx context.Context) (interface{}, error) {
		v, err := r.repo.GetThreshold(symbol, period)
		if errors.Is(err, monitorcfg.ErrNotFound) {
			return r.defaultPct, nil
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		r.log.Warn("threshold lookup failed, using global default",
			zap.String("symbol", symbol),
			zap.String("period", period),
			zap.Error(err))
		return r.defaultPct
	}
	if pct <= 0 {
		return r.defaultPct
	}
	return pct
}
