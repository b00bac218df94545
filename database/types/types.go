package types

import "time"

// Candle is one OHLCV bar in a fixed interval. Times are exchange-reported
// Unix milliseconds: OpenTime is the bucket start, CloseTime the bucket end
// (inclusive, i.e. open_time + interval_ms - 1).
type Candle struct {
	Symbol    string  `json:"symbol"`
	Interval  string  `json:"interval"`
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// OISnapshot is one open-interest observation for a perpetual contract,
// merged with the mark price state known at capture time. Optional fields
// are nil when the mark price stream has not yet reported the symbol.
type OISnapshot struct {
	Symbol          string    `json:"symbol"`
	OpenInterest    float64   `json:"open_interest"`
	TimestampMs     int64     `json:"timestamp_ms"`
	SnapshotTime    time.Time `json:"snapshot_time"`
	MarkPrice       *float64  `json:"mark_price,omitempty"`
	FundingRate     *float64  `json:"funding_rate,omitempty"`
	NextFundingTime *int64    `json:"next_funding_time,omitempty"`
	Source          string    `json:"source,omitempty"`
}

// MarkPriceState is the latest mark price / funding observation per symbol,
// maintained from the mark price stream.
type MarkPriceState struct {
	Symbol        string
	MarkPrice     float64
	FundingRate   float64
	NextFundingMs int64
	UpdatedAtMs   int64
}

// TickerStats is the rolling 24h statistics per symbol from the ticker stream.
type TickerStats struct {
	Symbol         string
	LastPrice      float64
	PriceChangePct float64
	HighPrice      float64
	LowPrice       float64
	Volume         float64
	UpdatedAtMs    int64
}

// LongShortRatio is one sample of account or position long/short ratios.
type LongShortRatio struct {
	Symbol         string
	GlobalAccount  float64 // long/short ratio across all accounts
	TopTraderPos   float64 // long/short ratio of top trader positions
	TopTraderAccts float64 // long/short ratio of top trader accounts
	TimestampMs    int64
}

// IntervalMs returns the duration of a supported kline interval in
// milliseconds. The second return value is false for unknown intervals.
func IntervalMs(interval string) (int64, bool) {
	ms, ok := intervalTable[interval]
	return ms, ok
}

var intervalTable = map[string]int64{
	"1m":  60_000,
	"3m":  180_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"2h":  7_200_000,
	"4h":  14_400_000,
	"6h":  21_600_000,
	"8h":  28_800_000,
	"12h": 43_200_000,
	"1d":  86_400_000,
}

// PeriodMs returns the duration of an open-interest lookback period in
// milliseconds. Periods share the kline interval notation.
func PeriodMs(period string) (int64, bool) {
	return IntervalMs(period)
}
