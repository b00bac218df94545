package handlers

import (
	"context"
	"fmt"

	ws "github.com/x-player-001/TRADING-MASTER-BACK-sub000/websocket"
)

// KlineHandler feeds kline events into the partitioned pipeline bus. Final
// candles are published with blocking semantics (they drive persistence and
// aggregation and must not be lost); provisional updates may be dropped
// under pressure, the next update supersedes them anyway.
type KlineHandler struct {
	ctx context.Context
	bus *PartitionedBus
}

// NewKlineHandler creates the kline stream handler.
func NewKlineHandler(ctx context.Context, bus *PartitionedBus) *KlineHandler {
	return &KlineHandler{ctx: ctx, bus: bus}
}

// EventType implements EventHandler.
func (h *KlineHandler) EventType() string { return "kline" }

// Handle implements EventHandler.
func (h *KlineHandler) Handle(event ws.Event) error {
	k, ok := event.(ws.KlineEvent)
	if !ok {
		return fmt.Errorf("kline handler: unexpected event %T", event)
	}

	policy := PolicyDropOldest
	if k.IsFinal {
		policy = PolicyBlock
	}
	h.bus.Publish(h.ctx, k.Symbol, event, policy)
	return nil
}

// MarkPriceHandler maintains the in-memory mark price table.
type MarkPriceHandler struct {
	table *MarkPriceTable
}

// NewMarkPriceHandler creates the mark-price stream handler.
func NewMarkPriceHandler(table *MarkPriceTable) *MarkPriceHandler {
	return &MarkPriceHandler{table: table}
}

// EventType implements EventHandler.
func (h *MarkPriceHandler) EventType() string { return "markPrice" }

// Handle implements EventHandler.
func (h *MarkPriceHandler) Handle(event ws.Event) error {
	m, ok := event.(ws.MarkPriceEvent)
	if !ok {
		return fmt.Errorf("markPrice handler: unexpected event %T", event)
	}
	h.table.Update(markPriceState(m))
	return nil
}

// TickerHandler maintains the in-memory 24h stats table.
type TickerHandler struct {
	table *TickerTable
}

// NewTickerHandler creates the ticker stream handler.
func NewTickerHandler(table *TickerTable) *TickerHandler {
	return &TickerHandler{table: table}
}

// EventType implements EventHandler.
func (h *TickerHandler) EventType() string { return "ticker" }

// Handle implements EventHandler.
func (h *TickerHandler) Handle(event ws.Event) error {
	t, ok := event.(ws.TickerEvent)
	if !ok {
		return fmt.Errorf("ticker handler: unexpected event %T", event)
	}
	h.table.Update(tickerStats(t))
	return nil
}
