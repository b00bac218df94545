package symbols

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/cache"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/exchange"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
)

type fakeLister struct {
	listing []exchange.SymbolInfo
	err     error
}

func (f *fakeLister) ExchangeInfo(context.Context) ([]exchange.SymbolInfo, error) {
	return f.listing, f.err
}

type fakeSymbolStore struct {
	replaced []models.ContractSymbol
	enabled  []models.ContractSymbol
}

func (f *fakeSymbolStore) ReplaceAll(listed []models.ContractSymbol) error {
	f.replaced = listed
	return nil
}

func (f *fakeSymbolStore) GetEnabled() ([]models.ContractSymbol, error) {
	return f.enabled, nil
}

type fakeBlacklist struct{ entries []string }

func (f *fakeBlacklist) GetBlacklist() ([]string, error) { return f.entries, nil }

func perp(symbol string) exchange.SymbolInfo {
	return exchange.SymbolInfo{
		Symbol:       symbol,
		BaseAsset:    symbol[:len(symbol)-4],
		QuoteAsset:   "USDT",
		ContractType: "PERPETUAL",
		Status:       "TRADING",
	}
}

func newTestRegistry(lister Lister, store SymbolStore, blacklist BlacklistSource, envBlacklist []string) *Registry {
	cfg := config.SymbolConfig{ReconcileInterval: 30 * time.Minute, Blacklist: envBlacklist}
	return NewRegistry(lister, store, blacklist, cache.NewMarketCache(nil, nil, nil), cfg, logger.NewNop())
}

func TestReconcileFiltersListing(t *testing.T) {
	delivery := perp("BTCUSDT_250926")
	delivery.ContractType = "CURRENT_QUARTER"
	busd := perp("ETHBUSD")
	busd.QuoteAsset = "BUSD"
	halted := perp("XYZUSDT")
	halted.Status = "BREAK"

	lister := &fakeLister{listing: []exchange.SymbolInfo{
		perp("BTCUSDT"), perp("ETHUSDT"), delivery, busd, halted,
	}}
	store := &fakeSymbolStore{}
	r := newTestRegistry(lister, store, nil, nil)

	require.NoError(t, r.Reconcile(context.Background()))
	require.Len(t, store.replaced, 2)
	assert.Equal(t, "BTCUSDT", store.replaced[0].Symbol)
	assert.True(t, store.replaced[0].Enabled)
	assert.Equal(t, "ETHUSDT", store.replaced[1].Symbol)
}

func TestReconcileMergesBlacklists(t *testing.T) {
	lister := &fakeLister{listing: []exchange.SymbolInfo{
		perp("BTCUSDT"), perp("1000PEPEUSDT"), perp("DOGEUSDT"),
	}}
	store := &fakeSymbolStore{}
	r := newTestRegistry(lister, store, &fakeBlacklist{entries: []string{"doge"}}, []string{"1000"})

	require.NoError(t, r.Reconcile(context.Background()))
	require.Len(t, store.replaced, 1)
	assert.Equal(t, "BTCUSDT", store.replaced[0].Symbol)
}

func TestEnabledReadsThroughStore(t *testing.T) {
	store := &fakeSymbolStore{enabled: []models.ContractSymbol{
		{Symbol: "BTCUSDT"}, {Symbol: "ETHUSDT"},
	}}
	r := newTestRegistry(&fakeLister{}, store, nil, nil)

	out, err := r.Enabled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, out)
}

func TestStreamList(t *testing.T) {
	streams := StreamList([]string{"BTCUSDT", "ETHUSDT"}, []string{"5m"})
	assert.Equal(t, []string{
		"btcusdt@kline_5m",
		"ethusdt@kline_5m",
		"!markPrice@arr",
		"!ticker@arr",
	}, streams)
}

func TestMatchesBlacklistSubstring(t *testing.T) {
	bl := []string{"1000", "TEST"}
	assert.True(t, matchesBlacklist("1000SHIBUSDT", bl))
	assert.True(t, matchesBlacklist("btctestusdt", bl))
	assert.False(t, matchesBlacklist("BTCUSDT", bl))
	assert.False(t, matchesBlacklist("BTCUSDT", nil))
}
