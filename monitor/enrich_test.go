package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/handlers"
)

type extremesSnapshots struct {
	fakeSnapshots
	low, high float64
}

func (f *extremesSnapshots) GetDailyExtremes(context.Context, string, string) (float64, float64, error) {
	return f.low, f.high, nil
}

func pricedSnap(symbol string, tsMs int64, oi, mark, funding float64) types.OISnapshot {
	return types.OISnapshot{
		Symbol:       symbol,
		OpenInterest: oi,
		TimestampMs:  tsMs,
		MarkPrice:    &mark,
		FundingRate:  &funding,
	}
}

func TestEnrichFillsPriceFundingAndExtremes(t *testing.T) {
	now := time.Now()
	nowMs := now.UnixMilli()

	window := []types.OISnapshot{
		pricedSnap("BTCUSDT", nowMs-10*60_000, 1_000_000, 50_000, 0.0001),
		pricedSnap("BTCUSDT", nowMs-60_000, 1_200_000, 51_000, 0.0003),
	}
	snaps := &extremesSnapshots{low: 49_000, high: 52_000}
	snaps.bySymbol = map[string][]types.OISnapshot{"BTCUSDT": window}

	marks := handlers.NewMarkPriceTable()
	marks.Update(types.MarkPriceState{Symbol: "BTCUSDT", MarkPrice: 51_200})

	ratios := NewRatioPoller(nil, nil, time.Minute, nil)
	ratios.Set(types.LongShortRatio{Symbol: "BTCUSDT", GlobalAccount: 1.8, TopTraderPos: 2.1})

	e := NewEnricher(snaps, marks, ratios, nil)
	e.now = func() time.Time { return now }

	rec := &models.OIAnomalyRecord{Symbol: "BTCUSDT"}
	e.Enrich(context.Background(), rec, window)

	require.NotNil(t, rec.PriceBefore)
	assert.Equal(t, 50_000.0, *rec.PriceBefore)
	require.NotNil(t, rec.PriceAfter)
	assert.Equal(t, 51_200.0, *rec.PriceAfter, "live mark price wins over the window edge")
	require.NotNil(t, rec.PriceChangePct)
	assert.InDelta(t, 2.4, *rec.PriceChangePct, 1e-9)

	require.NotNil(t, rec.FundingBefore)
	assert.Equal(t, 0.0001, *rec.FundingBefore)
	assert.Equal(t, 0.0003, *rec.FundingAfter)

	require.NotNil(t, rec.High24h)
	assert.Equal(t, 52_000.0, *rec.High24h)
	assert.Equal(t, 49_000.0, *rec.Low24h)
	require.NotNil(t, rec.DistFromHigh24hPct)
	assert.InDelta(t, (52_000.0-51_200.0)/52_000.0*100, *rec.DistFromHigh24hPct, 1e-9)

	// 30m window holds both snapshots? Only the one 1m old. Breakout flags
	// compare against that range.
	require.NotNil(t, rec.High30m)
	assert.Equal(t, 51_000.0, *rec.High30m)
	require.NotNil(t, rec.Broke30mHigh)
	assert.True(t, *rec.Broke30mHigh, "51200 above the 30m high of 51000")
	assert.False(t, *rec.Broke30mLow)

	require.NotNil(t, rec.GlobalLongShortRatio)
	assert.Equal(t, 1.8, *rec.GlobalLongShortRatio)
	assert.Equal(t, 2.1, *rec.TopTraderLongShortRatio)
}

func TestEnrichMissingFeedsLeaveFieldsNil(t *testing.T) {
	e := NewEnricher(nil, nil, nil, nil)
	rec := &models.OIAnomalyRecord{Symbol: "BTCUSDT"}
	e.Enrich(context.Background(), rec, nil)

	assert.Nil(t, rec.PriceBefore)
	assert.Nil(t, rec.High24h)
	assert.Nil(t, rec.GlobalLongShortRatio)
	assert.Nil(t, rec.MA10)
	assert.Nil(t, rec.TrendShort)
}
