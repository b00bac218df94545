package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requestTimeout = 5 * time.Second

	// The futures REST API allows 2400 weight/min; the poller's steady-state
	// load is one openInterest call per symbol per minute, so 20 req/s with
	// bursts keeps us far under the ceiling.
	requestsPerSecond = 20
	requestBurst      = 40
)

// Client is the exchange REST client used for symbol discovery and the
// open-interest / long-short-ratio polls. All calls go through a shared
// rate limiter and a circuit breaker; a tripped breaker fails fast until
// the exchange recovers.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewClient creates an exchange REST client against baseURL.
func NewClient(baseURL string, log *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange-rest",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("exchange breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		breaker: breaker,
		log:     log.Named("exchange"),
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, truncate(raw, 200))
		}
		return raw, nil
	})
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	if err := json.Unmarshal(body.([]byte), dest); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// SymbolInfo is one tradable contract from the exchangeInfo listing.
type SymbolInfo struct {
	Symbol            string
	BaseAsset         string
	QuoteAsset        string
	ContractType      string
	Status            string
	PricePrecision    int
	QuantityPrecision int
	StepSize          float64
	MinNotional       float64
	OnboardDateMs     int64
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		BaseAsset         string `json:"baseAsset"`
		QuoteAsset        string `json:"quoteAsset"`
		ContractType      string `json:"contractType"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		OnboardDate       int64  `json:"onboardDate"`
		Filters           []struct {
			FilterType string `json:"filterType"`
			StepSize   string `json:"stepSize"`
			Notional   string `json:"notional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// ExchangeInfo fetches the full contract listing.
func (c *Client) ExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	var resp exchangeInfoResponse
	if err := c.get(ctx, "/fapi/v1/exchangeInfo", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]SymbolInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		info := SymbolInfo{
			Symbol:            s.Symbol,
			BaseAsset:         s.BaseAsset,
			QuoteAsset:        s.QuoteAsset,
			ContractType:      s.ContractType,
			Status:            s.Status,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
			OnboardDateMs:     s.OnboardDate,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				info.StepSize, _ = strconv.ParseFloat(f.StepSize, 64)
			case "MIN_NOTIONAL":
				info.MinNotional, _ = strconv.ParseFloat(f.Notional, 64)
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// OpenInterest is one open-interest reading.
type OpenInterest struct {
	Symbol       string
	OpenInterest float64
	TimeMs       int64
}

type openInterestResponse struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}

// GetOpenInterest fetches the current open interest for a symbol.
func (c *Client) GetOpenInterest(ctx context.Context, symbol string) (*OpenInterest, error) {
	params := url.Values{"symbol": {symbol}}
	var resp openInterestResponse
	if err := c.get(ctx, "/fapi/v1/openInterest", params, &resp); err != nil {
		return nil, err
	}
	oi, err := strconv.ParseFloat(resp.OpenInterest, 64)
	if err != nil {
		return nil, fmt.Errorf("GetOpenInterest %s: bad value %q", symbol, resp.OpenInterest)
	}
	return &OpenInterest{Symbol: resp.Symbol, OpenInterest: oi, TimeMs: resp.Time}, nil
}

// PremiumIndex is the mark price / funding state for a symbol.
type PremiumIndex struct {
	Symbol          string
	MarkPrice       float64
	LastFundingRate float64
	NextFundingMs   int64
}

type premiumIndexResponse struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// GetPremiumIndex fetches mark price and funding for a symbol. Used as a
// fallback when the mark-price stream has not reported the symbol yet.
func (c *Client) GetPremiumIndex(ctx context.Context, symbol string) (*PremiumIndex, error) {
	params := url.Values{"symbol": {symbol}}
	var resp premiumIndexResponse
	if err := c.get(ctx, "/fapi/v1/premiumIndex", params, &resp); err != nil {
		return nil, err
	}
	mark, _ := strconv.ParseFloat(resp.MarkPrice, 64)
	funding, _ := strconv.ParseFloat(resp.LastFundingRate, 64)
	return &PremiumIndex{
		Symbol:          resp.Symbol,
		MarkPrice:       mark,
		LastFundingRate: funding,
		NextFundingMs:   resp.NextFundingTime,
	}, nil
}

type ratioRow struct {
	Symbol         string `json:"symbol"`
	LongShortRatio string `json:"longShortRatio"`
	Timestamp      int64  `json:"timestamp"`
}

func (c *Client) latestRatio(ctx context.Context, path, symbol string) (float64, int64, error) {
	params := url.Values{
		"symbol": {symbol},
		"period": {"5m"},
		"limit":  {"1"},
	}
	var rows []ratioRow
	if err := c.get(ctx, path, params, &rows); err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, fmt.Errorf("GET %s: empty response for %s", path, symbol)
	}
	v, err := strconv.ParseFloat(rows[0].LongShortRatio, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("GET %s: bad ratio %q", path, rows[0].LongShortRatio)
	}
	return v, rows[0].Timestamp, nil
}

// LongShortRatios is the latest long/short positioning sample for a symbol.
type LongShortRatios struct {
	Symbol         string
	GlobalAccount  float64
	TopTraderPos   float64
	TopTraderAccts float64
	TimestampMs    int64
}

// GetLongShortRatios fetches the latest global account ratio, top trader
// position ratio and top trader account ratio for a symbol.
func (c *Client) GetLongShortRatios(ctx context.Context, symbol string) (*LongShortRatios, error) {
	global, ts, err := c.latestRatio(ctx, "/futures/data/globalLongShortAccountRatio", symbol)
	if err != nil {
		return nil, err
	}
	topPos, _, err := c.latestRatio(ctx, "/futures/data/topLongShortPositionRatio", symbol)
	if err != nil {
		return nil, err
	}
	topAcct, _, err := c.latestRatio(ctx, "/futures/data/topLongShortAccountRatio", symbol)
	if err != nil {
		return nil, err
	}
	return &LongShortRatios{
		Symbol:         symbol,
		GlobalAccount:  global,
		TopTraderPos:   topPos,
		TopTraderAccts: topAcct,
		TimestampMs:    ts,
	}, nil
}
