package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
)

func TestExchangeInfoParsesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		w.Write([]byte(`{
			"symbols": [
				{
					"symbol": "BTCUSDT", "status": "TRADING",
					"baseAsset": "BTC", "quoteAsset": "USDT",
					"contractType": "PERPETUAL",
					"pricePrecision": 2, "quantityPrecision": 3,
					"onboardDate": 1569398400000,
					"filters": [
						{"filterType": "LOT_SIZE", "stepSize": "0.001"},
						{"filterType": "MIN_NOTIONAL", "notional": "100"}
					]
				},
				{
					"symbol": "ETHUSDT_230929", "status": "TRADING",
					"baseAsset": "ETH", "quoteAsset": "USDT",
					"contractType": "CURRENT_QUARTER",
					"pricePrecision": 2, "quantityPrecision": 3,
					"filters": []
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.NewNop())
	infos, err := c.ExchangeInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	btc := infos[0]
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, "PERPETUAL", btc.ContractType)
	assert.Equal(t, 2, btc.PricePrecision)
	assert.Equal(t, 0.001, btc.StepSize)
	assert.Equal(t, 100.0, btc.MinNotional)
}

func TestGetOpenInterest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/openInterest", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol": "BTCUSDT", "openInterest": "91234.567", "time": 1700000000000}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.NewNop())
	oi, err := c.GetOpenInterest(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 91234.567, oi.OpenInterest)
	assert.Equal(t, int64(1700000000000), oi.TimeMs)
}

func TestGetOpenInterestBadValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "BTCUSDT", "openInterest": "not-a-number", "time": 1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.NewNop())
	_, err := c.GetOpenInterest(context.Background(), "BTCUSDT")
	require.Error(t, err)
}

func TestGetLongShortRatios(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/futures/data/globalLongShortAccountRatio":
			w.Write([]byte(`[{"symbol": "BTCUSDT", "longShortRatio": "1.85", "timestamp": 1700000000000}]`))
		case "/futures/data/topLongShortPositionRatio":
			w.Write([]byte(`[{"symbol": "BTCUSDT", "longShortRatio": "2.10", "timestamp": 1700000000000}]`))
		case "/futures/data/topLongShortAccountRatio":
			w.Write([]byte(`[{"symbol": "BTCUSDT", "longShortRatio": "1.42", "timestamp": 1700000000000}]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.NewNop())
	ratios, err := c.GetLongShortRatios(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1.85, ratios.GlobalAccount)
	assert.Equal(t, 2.10, ratios.TopTraderPos)
	assert.Equal(t, 1.42, ratios.TopTraderAccts)
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, logger.NewNop())
	for i := 0; i < 5; i++ {
		_, err := c.GetOpenInterest(context.Background(), "BTCUSDT")
		require.Error(t, err)
	}
	// 6th call should be rejected by the open breaker without reaching the server
	_, err := c.GetOpenInterest(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}
