package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
)

type latestPayload struct {
	Symbol string  `json:"symbol"`
	OI     float64 `json:"oi"`
}

func newTestCache(t *testing.T) (*MarketCache, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	rc := NewFromClient(client, logger.NewNop())
	return NewMarketCache(rc, metrics.New(), []string{"5m", "1h"}), mock
}

func TestGetOrLoadHit(t *testing.T) {
	mc, mock := newTestCache(t)

	cached, _ := json.Marshal(latestPayload{Symbol: "BTCUSDT", OI: 1234})
	mock.ExpectGet("latest:BTCUSDT").SetVal(string(cached))

	var got latestPayload
	err := mc.GetOrLoad(context.Background(), "latest", LatestKey("BTCUSDT"), TTLLatestSnapshot, &got,
		func(ctx context.Context) (interface{}, error) {
			t.Fatal("loader must not run on a cache hit")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1234.0, got.OI)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrLoadMissFillsCache(t *testing.T) {
	mc, mock := newTestCache(t)

	loaded := latestPayload{Symbol: "ETHUSDT", OI: 99}
	raw, _ := json.Marshal(loaded)

	mock.ExpectGet("latest:ETHUSDT").RedisNil()
	mock.ExpectSet("latest:ETHUSDT", raw, TTLLatestSnapshot).SetVal("OK")

	calls := 0
	var got latestPayload
	err := mc.GetOrLoad(context.Background(), "latest", LatestKey("ETHUSDT"), TTLLatestSnapshot, &got,
		func(ctx context.Context) (interface{}, error) {
			calls++
			return loaded, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, loaded, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrLoadLoaderError(t *testing.T) {
	mc, mock := newTestCache(t)
	mock.ExpectGet("latest:XRPUSDT").RedisNil()

	wantErr := errors.New("db down")
	var got latestPayload
	err := mc.GetOrLoad(context.Background(), "latest", LatestKey("XRPUSDT"), TTLLatestSnapshot, &got,
		func(ctx context.Context) (interface{}, error) {
			return nil, wantErr
		})
	require.ErrorIs(t, err, wantErr)
}

func TestGetOrLoadWithoutRedis(t *testing.T) {
	// nil redis client degrades to a pass-through loader call
	mc := NewMarketCache(nil, metrics.New(), nil)

	var got latestPayload
	err := mc.GetOrLoad(context.Background(), "latest", LatestKey("BTCUSDT"), TTLLatestSnapshot, &got,
		func(ctx context.Context) (interface{}, error) {
			return latestPayload{Symbol: "BTCUSDT", OI: 7}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.OI)
}

func TestInvalidateSnapshotDropsHistWindows(t *testing.T) {
	mc, mock := newTestCache(t)
	mock.ExpectDel("latest:BTCUSDT", "hist:BTCUSDT:5m", "hist:BTCUSDT:1h").SetVal(3)

	mc.InvalidateSnapshot(context.Background(), "BTCUSDT")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnomalyListKeyNormalization(t *testing.T) {
	a := AnomalyListKey(map[string]string{"symbol": "BTCUSDT", "severity": "high"})
	b := AnomalyListKey(map[string]string{"severity": "high", "symbol": "BTCUSDT"})
	assert.Equal(t, a, b, "parameter order must not change the key")

	c := AnomalyListKey(map[string]string{"severity": "high", "symbol": "BTCUSDT", "limit": ""})
	assert.Equal(t, a, c, "empty params are dropped before hashing")

	d := AnomalyListKey(map[string]string{"severity": "medium", "symbol": "BTCUSDT"})
	assert.NotEqual(t, a, d)
}

func TestStatsKeyIsSymbolAgnostic(t *testing.T) {
	// the stats key carries only the date: callers filter by symbol client-side
	assert.Equal(t, "stats:20260825", StatsKey("20260825"))
}

func TestHistTTLClamped(t *testing.T) {
	assert.Equal(t, 30*time.Second, HistTTL(60*time.Second))
	assert.Equal(t, 75*time.Second, HistTTL(5*time.Minute))
	assert.Equal(t, 5*time.Minute, HistTTL(4*time.Hour))
}
