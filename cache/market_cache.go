package cache

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
)

// TTLs per cache domain.
const (
	TTLLatestSnapshot = 60 * time.Second
	TTLEnabledSymbols = 5 * time.Minute
	TTLAnomalyList    = 30 * time.Second
	TTLDailyStats     = 30 * time.Second
	TTLConfigKey      = 10 * time.Minute
)

// HistTTL returns the TTL for a snapshot history window: a quarter of the
// period, clamped to [30s, 5m]. Short windows go stale faster.
func HistTTL(period time.Duration) time.Duration {
	ttl := period / 4
	if ttl < 30*time.Second {
		ttl = 30 * time.Second
	}
	if ttl > 5*time.Minute {
		ttl = 5 * time.Minute
	}
	return ttl
}

// MarketCache is a read-through cache in front of the snapshot store and
// the derived-stats queries. Miss fills are single-flight per key so a cold
// popular key produces one underlying read, not N.
//
// A MarketCache built over a nil RedisClient degrades to calling loaders
// directly; the engine stays up when redis is down.
type MarketCache struct {
	redis   *RedisClient
	metrics *metrics.Metrics
	group   singleflight.Group

	// period keys known to be used for hist windows, for invalidation
	histPeriods []string
}

// NewMarketCache creates the read-through market cache.
func NewMarketCache(redis *RedisClient, m *metrics.Metrics, histPeriods []string) *MarketCache {
	return &MarketCache{
		redis:       redis,
		metrics:     m,
		histPeriods: histPeriods,
	}
}

// Key builders. Keys are flat strings; values are JSON.

// LatestKey is the cache key for the latest snapshot of one symbol.
func LatestKey(symbol string) string {
	return "latest:" + symbol
}

// EnabledSymbolsKey is the cache key for the enabled-symbol set.
const EnabledSymbolsKey = "symbols:enabled"

// ConfigKey is the cache key for one runtime config entry.
func ConfigKey(key string) string {
	return "cfg:" + key
}

// HistKey is the cache key for one symbol's snapshot history window.
func HistKey(symbol, period string) string {
	return fmt.Sprintf("hist:%s:%s", symbol, period)
}

// AnomalyListKey hashes the normalized query parameters of an anomaly list
// request. Parameter order does not affect the key.
func AnomalyListKey(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)
	sum := sha1.Sum([]byte(strings.Join(keys, "&")))
	return fmt.Sprintf("anomalies:%x", sum[:8])
}

// StatsKey is the cache key for one day's aggregate stats. The symbol
// filter is deliberately dropped from the key: "all symbols today" and
// "BTCUSDT today" share the entry and the caller filters client-side.
func StatsKey(date string) string {
	return "stats:" + date
}

// GetOrLoad reads key into dest, calling loader on a miss and caching its
// result with ttl. Concurrent misses for the same key share one loader call.
func (mc *MarketCache) GetOrLoad(ctx context.Context, domain, key string, ttl time.Duration, dest interface{}, loader func(ctx context.Context) (interface{}, error)) error {
	if mc.redis != nil {
		err := mc.redis.Get(ctx, key, dest)
		if err == nil {
			if mc.metrics != nil {
				mc.metrics.CacheHits.WithLabelValues(domain).Inc()
			}
			return nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			// Redis trouble: fall through to the loader, don't fail the read.
			mc.redis.log.Warn("cache read failed", zap.Error(err))
		}
	}
	if mc.metrics != nil {
		mc.metrics.CacheMisses.WithLabelValues(domain).Inc()
	}

	val, err, _ := mc.group.Do(key, func() (interface{}, error) {
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if mc.redis != nil {
			if err := mc.redis.Set(ctx, key, loaded, ttl); err != nil {
				mc.redis.log.Warn("cache fill failed", zap.Error(err))
			}
		}
		return loaded, nil
	})
	if err != nil {
		return err
	}

	// The loader's result reaches dest through JSON to keep hit and miss
	// paths type-identical.
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("GetOrLoad %s: %w", key, err)
	}
	return json.Unmarshal(raw, dest)
}

// InvalidateSnapshot drops the cached entries touched by a new snapshot
// write for a symbol.
func (mc *MarketCache) InvalidateSnapshot(ctx context.Context, symbol string) {
	if mc.redis == nil {
		return
	}
	keys := []string{LatestKey(symbol)}
	for _, p := range mc.histPeriods {
		keys = append(keys, HistKey(symbol, p))
	}
	if err := mc.redis.Delete(ctx, keys...); err != nil {
		mc.redis.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

// InvalidateSymbols drops the enabled-symbol set entry after a reconcile.
func (mc *MarketCache) InvalidateSymbols(ctx context.Context) {
	if mc.redis == nil {
		return
	}
	if err := mc.redis.Delete(ctx, EnabledSymbolsKey); err != nil {
		mc.redis.log.Warn("cache invalidation failed", zap.Error(err))
	}
}
