package symbols

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/cache"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/exchange"
)

// Lister fetches the current contract listing from the exchange.
type Lister interface {
	ExchangeInfo(ctx context.Context) ([]exchange.SymbolInfo, error)
}

// SymbolStore is the persistence surface of the registry.
type SymbolStore interface {
	ReplaceAll(listed []models.ContractSymbol) error
	GetEnabled() ([]models.ContractSymbol, error)
}

// BlacklistSource resolves the runtime blacklist from the config table.
type BlacklistSource interface {
	GetBlacklist() ([]string, error)
}

// Registry reconciles the monitored symbol universe against the exchange
// listing. Symbols leaving the listing are disabled, never deleted, so
// historical records keep their referent.
type Registry struct {
	client    Lister
	store     SymbolStore
	blacklist BlacklistSource
	cache     *cache.MarketCache
	cfg       config.SymbolConfig
	log       *zap.Logger
}

// NewRegistry builds a registry. blacklist may be nil (env list only).
func NewRegistry(client Lister, store SymbolStore, blacklist BlacklistSource, mc *cache.MarketCache, cfg config.SymbolConfig, log *zap.Logger) *Registry {
	return &Registry{
		client:    client,
		store:     store,
		blacklist: blacklist,
		cache:     mc,
		cfg:       cfg,
		log:       log,
	}
}

// Reconcile fetches the listing, filters it to tradable USDT perpetuals
// outside the blacklist, and replaces the enabled set in one transaction.
func (r *Registry) Reconcile(ctx context.Context) error {
	listed, err := r.client.ExchangeInfo(ctx)
	if err != nil {
		return fmt.Errorf("Reconcile: %w", err)
	}

	blacklist := r.effectiveBlacklist()
	rows := make([]models.ContractSymbol, 0, len(listed))
	for _, info := range listed {
		if info.ContractType != "PERPETUAL" || info.Status != "TRADING" || info.QuoteAsset != "USDT" {
			continue
		}
		if matchesBlacklist(info.Symbol, blacklist) {
			continue
		}
		row := models.ContractSymbol{
			Symbol:            info.Symbol,
			BaseAsset:         info.BaseAsset,
			QuoteAsset:        info.QuoteAsset,
			ContractType:      info.ContractType,
			Status:            info.Status,
			Enabled:           true,
			PricePrecision:    info.PricePrecision,
			QuantityPrecision: info.QuantityPrecision,
			StepSize:          info.StepSize,
			MinNotional:       info.MinNotional,
		}
		if info.OnboardDateMs > 0 {
			t := time.UnixMilli(info.OnboardDateMs).UTC()
			row.ListedAt = &t
		}
		rows = append(rows, row)
	}

	if err := r.store.ReplaceAll(rows); err != nil {
		return fmt.Errorf("Reconcile: %w", err)
	}
	if r.cache != nil {
		r.cache.InvalidateSymbols(ctx)
	}
	r.log.Info("symbol universe reconciled", zap.Int("enabled", len(rows)))
	return nil
}

// effectiveBlacklist merges the env blacklist with the runtime one.
func (r *Registry) effectiveBlacklist() []string {
	out := append([]string(nil), r.cfg.Blacklist...)
	if r.blacklist == nil {
		return out
	}
	runtime, err := r.blacklist.GetBlacklist()
	if err != nil {
		r.log.Warn("runtime blacklist unavailable", zap.Error(err))
		return out
	}
	return append(out, runtime...)
}

// matchesBlacklist is a case-insensitive substring match, so "1000" bans
// every leveraged-multiple contract at once.
func matchesBlacklist(symbol string, blacklist []string) bool {
	upper := strings.ToUpper(symbol)
	for _, entry := range blacklist {
		if entry == "" {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(entry)) {
			return true
		}
	}
	return false
}

// Enabled returns the enabled symbol names through the read-through cache.
func (r *Registry) Enabled(ctx context.Context) ([]string, error) {
	var out []string
	err := r.cache.GetOrLoad(ctx, "symbols", cache.EnabledSymbolsKey, cache.TTLEnabledSymbols, &out,
		func(ctx context.Context) (interface{}, error) {
			rows, err := r.store.GetEnabled()
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(rows))
			for _, row := range rows {
				names = append(names, row.Symbol)
			}
			return names, nil
		})
	if err != nil {
		return nil, fmt.Errorf("Enabled: %w", err)
	}
	return out, nil
}

// EnabledOrEmpty is the provider form used by the pollers: lookup failures
// log and return an empty slice instead of propagating.
func (r *Registry) EnabledOrEmpty(ctx context.Context) []string {
	out, err := r.Enabled(ctx)
	if err != nil {
		r.log.Warn("enabled symbols unavailable", zap.Error(err))
		return nil
	}
	return out
}

// Run reconciles on the configured cadence until ctx is cancelled. Errors
// are logged and retried next tick.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.log.Error("periodic reconcile failed", zap.Error(err))
			}
		}
	}
}

// StreamList builds the subscription list for the dispatcher: per-symbol
// kline streams on each interval plus the global mark price and ticker
// array streams.
func StreamList(symbols []string, intervals []string) []string {
	out := make([]string, 0, len(symbols)*len(intervals)+2)
	for _, s := range symbols {
		lower := strings.ToLower(s)
		for _, iv := range intervals {
			out = append(out, lower+"@kline_"+iv)
		}
	}
	out = append(out, "!markPrice@arr", "!ticker@arr")
	return out
}
