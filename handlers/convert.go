package handlers

import (
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	ws "github.com/x-player-001/TRADING-MASTER-BACK-sub000/websocket"
)

func markPriceState(m ws.MarkPriceEvent) types.MarkPriceState {
	return types.MarkPriceState{
		Symbol:        m.Symbol,
		MarkPrice:     m.MarkPrice,
		FundingRate:   m.FundingRate,
		NextFundingMs: m.NextFundingMs,
		UpdatedAtMs:   m.EventTimeMs,
	}
}

func tickerStats(t ws.TickerEvent) types.TickerStats {
	return types.TickerStats{
		Symbol:         t.Symbol,
		LastPrice:      t.LastPrice,
		PriceChangePct: t.PriceChangePct,
		HighPrice:      t.HighPrice,
		LowPrice:       t.LowPrice,
		Volume:         t.Volume,
		UpdatedAtMs:    t.EventTimeMs,
	}
}
