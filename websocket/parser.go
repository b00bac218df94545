package websocket

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
)

// Event is one normalized market-data event. The parser turns both incoming
// framings (direct objects and {stream,data} envelopes, including array
// payloads) into this tagged sum; unknown variants become SkippedEvent, not
// errors.
type Event interface {
	EventType() string
}

// KlineEvent is one candle update. IsFinal marks the closing update of the
// period; only final candles are persisted and aggregated.
type KlineEvent struct {
	Symbol      string
	Interval    string
	Candle      types.Candle
	IsFinal     bool
	EventTimeMs int64
}

// EventType implements Event.
func (KlineEvent) EventType() string { return "kline" }

// MarkPriceEvent is one mark price / funding rate update.
type MarkPriceEvent struct {
	Symbol        string
	MarkPrice     float64
	FundingRate   float64
	NextFundingMs int64
	EventTimeMs   int64
}

// EventType implements Event.
func (MarkPriceEvent) EventType() string { return "markPrice" }

// TickerEvent is one rolling 24h statistics update.
type TickerEvent struct {
	Symbol         string
	LastPrice      float64
	PriceChangePct float64
	HighPrice      float64
	LowPrice       float64
	Volume         float64
	EventTimeMs    int64
}

// EventType implements Event.
func (TickerEvent) EventType() string { return "ticker" }

// PriceLevel is one side entry of a depth update.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthEvent is one order-book delta.
type DepthEvent struct {
	Symbol        string
	FirstUpdateID int64
	FinalUpdateID int64
	Bids          []PriceLevel
	Asks          []PriceLevel
	EventTimeMs   int64
}

// EventType implements Event.
func (DepthEvent) EventType() string { return "depth" }

// TradeEvent is one executed trade.
type TradeEvent struct {
	Symbol       string
	Price        float64
	Quantity     float64
	IsBuyerMaker bool
	TradeTimeMs  int64
}

// EventType implements Event.
func (TradeEvent) EventType() string { return "trade" }

// SkippedEvent marks a frame the parser recognized but does not route
// (subscription acks, unknown event tags). Counted, never fatal.
type SkippedEvent struct {
	Reason string
}

// EventType implements Event.
func (SkippedEvent) EventType() string { return "skipped" }

// ParseFrame normalizes one raw frame into events. Array payloads (e.g.
// !markPrice@arr) fan out one event per symbol, so the result is a slice.
// A parse error means the frame was unintelligible; the caller logs it and
// drops the frame.
func ParseFrame(data []byte) ([]Event, error) {
	// EventTime gives the numeric "E" key an exact field of its own;
	// without it encoding/json case-folds "E" onto "e" and the decode of
	// every real frame fails.
	var probe struct {
		Stream    string          `json:"stream"`
		Data      json.RawMessage `json:"data"`
		Event     string          `json:"e"`
		EventTime json.RawMessage `json:"E"`
		ID        json.RawMessage `json:"id"`
		Result    json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		// Top-level arrays arrive on raw (non-combined) array streams.
		if len(data) > 0 && data[0] == '[' {
			return parseArray(data)
		}
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	// Aggregate-stream envelope: unwrap and recurse on the payload.
	if probe.Stream != "" {
		if len(probe.Data) > 0 && probe.Data[0] == '[' {
			return parseArray(probe.Data)
		}
		return ParseFrame(probe.Data)
	}

	// Subscription control acks carry id/result but no event tag.
	if probe.Event == "" {
		if probe.ID != nil {
			return []Event{SkippedEvent{Reason: "subscription ack"}}, nil
		}
		return []Event{SkippedEvent{Reason: "no event tag"}}, nil
	}

	ev, err := parseDirect(probe.Event, data)
	if err != nil {
		return nil, err
	}
	return []Event{ev}, nil
}

func parseArray(data []byte) ([]Event, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse array frame: %w", err)
	}
	out := make([]Event, 0, len(items))
	for _, item := range items {
		evs, err := ParseFrame(item)
		if err != nil {
			return nil, err
		}
		out = append(out, evs...)
	}
	return out, nil
}

func parseDirect(eventTag string, data []byte) (Event, error) {
	switch eventTag {
	case "kline":
		return parseKline(data)
	case "markPriceUpdate":
		return parseMarkPrice(data)
	case "24hrTicker":
		return parseTicker(data)
	case "depthUpdate":
		return parseDepth(data)
	case "trade", "aggTrade":
		return parseTrade(data)
	default:
		return SkippedEvent{Reason: "unknown event " + eventTag}, nil
	}
}

// f parses the exchange's string-encoded decimal fields.
func f(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseKline(data []byte) (Event, error) {
	// The unused fields pin JSON keys that would otherwise case-fold onto
	// a same-letter field: "e" onto "E", "L" (last trade ID) onto "l",
	// "V" (taker volume) onto "v".
	var raw struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
		Kline     struct {
			OpenTime    int64  `json:"t"`
			CloseTime   int64  `json:"T"`
			Symbol      string `json:"s"`
			Interval    string `json:"i"`
			Open        string `json:"o"`
			Close       string `json:"c"`
			High        string `json:"h"`
			Low         string `json:"l"`
			Volume      string `json:"v"`
			IsFinal     bool   `json:"x"`
			LastTradeID int64  `json:"L"`
			TakerVolume string `json:"V"`
		} `json:"k"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse kline: %w", err)
	}
	k := raw.Kline
	if k.Symbol == "" || k.Interval == "" {
		return nil, fmt.Errorf("parse kline: missing symbol or interval")
	}

	c := types.Candle{
		Symbol:    k.Symbol,
		Interval:  k.Interval,
		OpenTime:  k.OpenTime,
		CloseTime: k.CloseTime,
	}
	var err error
	if c.Open, err = f(k.Open); err != nil {
		return nil, fmt.Errorf("parse kline open: %w", err)
	}
	if c.High, err = f(k.High); err != nil {
		return nil, fmt.Errorf("parse kline high: %w", err)
	}
	if c.Low, err = f(k.Low); err != nil {
		return nil, fmt.Errorf("parse kline low: %w", err)
	}
	if c.Close, err = f(k.Close); err != nil {
		return nil, fmt.Errorf("parse kline close: %w", err)
	}
	if c.Volume, err = f(k.Volume); err != nil {
		return nil, fmt.Errorf("parse kline volume: %w", err)
	}

	return KlineEvent{
		Symbol:      k.Symbol,
		Interval:    k.Interval,
		Candle:      c,
		IsFinal:     k.IsFinal,
		EventTimeMs: raw.EventTime,
	}, nil
}

func parseMarkPrice(data []byte) (Event, error) {
	// Event and SettlePrice pin "e" and "P" so they cannot case-fold onto
	// "E" and "p".
	var raw struct {
		Event           string `json:"e"`
		EventTime       int64  `json:"E"`
		Symbol          string `json:"s"`
		MarkPrice       string `json:"p"`
		SettlePrice     string `json:"P"`
		FundingRate     string `json:"r"`
		NextFundingTime int64  `json:"T"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse markPrice: %w", err)
	}
	mark, err := f(raw.MarkPrice)
	if err != nil {
		return nil, fmt.Errorf("parse markPrice price: %w", err)
	}
	funding, err := f(raw.FundingRate)
	if err != nil {
		return nil, fmt.Errorf("parse markPrice funding: %w", err)
	}
	return MarkPriceEvent{
		Symbol:        raw.Symbol,
		MarkPrice:     mark,
		FundingRate:   funding,
		NextFundingMs: raw.NextFundingTime,
		EventTimeMs:   raw.EventTime,
	}, nil
}

func parseTicker(data []byte) (Event, error) {
	// The extra fields pin keys that would case-fold onto a same-letter
	// field: "e" onto "E", "p" onto "P", "C" (stats close, numeric) onto
	// "c", "L" (last trade ID, numeric) onto "l".
	var raw struct {
		Event          string `json:"e"`
		EventTime      int64  `json:"E"`
		Symbol         string `json:"s"`
		LastPrice      string `json:"c"`
		StatsCloseTime int64  `json:"C"`
		PriceChange    string `json:"p"`
		PriceChangePct string `json:"P"`
		HighPrice      string `json:"h"`
		LowPrice       string `json:"l"`
		LastTradeID    int64  `json:"L"`
		Volume         string `json:"v"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ticker: %w", err)
	}
	ev := TickerEvent{Symbol: raw.Symbol, EventTimeMs: raw.EventTime}
	var err error
	if ev.LastPrice, err = f(raw.LastPrice); err != nil {
		return nil, fmt.Errorf("parse ticker last: %w", err)
	}
	if ev.PriceChangePct, err = f(raw.PriceChangePct); err != nil {
		return nil, fmt.Errorf("parse ticker change: %w", err)
	}
	if ev.HighPrice, err = f(raw.HighPrice); err != nil {
		return nil, fmt.Errorf("parse ticker high: %w", err)
	}
	if ev.LowPrice, err = f(raw.LowPrice); err != nil {
		return nil, fmt.Errorf("parse ticker low: %w", err)
	}
	if ev.Volume, err = f(raw.Volume); err != nil {
		return nil, fmt.Errorf("parse ticker volume: %w", err)
	}
	return ev, nil
}

func parseDepth(data []byte) (Event, error) {
	// Event pins "e" so it cannot case-fold onto "E".
	var raw struct {
		Event     string      `json:"e"`
		EventTime int64       `json:"E"`
		Symbol    string      `json:"s"`
		FirstID   int64       `json:"U"`
		FinalID   int64       `json:"u"`
		Bids      [][2]string `json:"b"`
		Asks      [][2]string `json:"a"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse depth: %w", err)
	}
	ev := DepthEvent{
		Symbol:        raw.Symbol,
		FirstUpdateID: raw.FirstID,
		FinalUpdateID: raw.FinalID,
		EventTimeMs:   raw.EventTime,
	}
	var err error
	if ev.Bids, err = parseLevels(raw.Bids); err != nil {
		return nil, fmt.Errorf("parse depth bids: %w", err)
	}
	if ev.Asks, err = parseLevels(raw.Asks); err != nil {
		return nil, fmt.Errorf("parse depth asks: %w", err)
	}
	return ev, nil
}

func parseLevels(raw [][2]string) ([]PriceLevel, error) {
	out := make([]PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := f(lvl[0])
		if err != nil {
			return nil, err
		}
		qty, err := f(lvl[1])
		if err != nil {
			return nil, err
		}
		out = append(out, PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

func parseTrade(data []byte) (Event, error) {
	var raw struct {
		Symbol       string `json:"s"`
		Price        string `json:"p"`
		Quantity     string `json:"q"`
		TradeTime    int64  `json:"T"`
		IsBuyerMaker bool   `json:"m"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse trade: %w", err)
	}
	ev := TradeEvent{Symbol: raw.Symbol, TradeTimeMs: raw.TradeTime, IsBuyerMaker: raw.IsBuyerMaker}
	var err error
	if ev.Price, err = f(raw.Price); err != nil {
		return nil, fmt.Errorf("parse trade price: %w", err)
	}
	if ev.Quantity, err = f(raw.Quantity); err != nil {
		return nil, fmt.Errorf("parse trade quantity: %w", err)
	}
	return ev, nil
}
