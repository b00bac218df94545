// Package app wires the surveillance subsystems together and owns their
// lifecycles: stream dispatch, candle persistence and roll-up, pattern
// detection, OI anomaly monitoring, the read API and the periodic
// maintenance tasks.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/aggregator"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/alerts"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/api"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/cache"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/config"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database"
	alertsdb "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/alerts"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/anomalies"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/candles"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/monitorcfg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/snapshots"
	symbolsdb "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/symbols"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/exchange"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/handlers"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/monitor"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/notifications"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/patterns"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/realtime"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/symbols"
	ws "github.com/x-player-001/TRADING-MASTER-BACK-sub000/websocket"
)

// klineSourceInterval is the interval streamed from the exchange; longer
// intervals are rolled up locally by the aggregator.
const klineSourceInterval = "5m"

// warmupDepth is how many recent candles per (symbol, interval) are
// replayed into the indicator engines at startup.
const warmupDepth = 240

// App owns the wired subsystems and their shutdown order.
type App struct {
	cfg *config.Config
	log *zap.Logger
	m   *metrics.Metrics

	ctx       context.Context
	startTime time.Time

	pq    *database.DB
	gdb   *database.Database
	redis *cache.RedisClient
	mc    *cache.MarketCache

	broker   *realtime.Broker
	webhooks *notifications.WebhookManager

	registry    *symbols.Registry
	snaps       *snapshots.Store
	candleStore *candles.Store

	markTable   *handlers.MarkPriceTable
	tickerTable *handlers.TickerTable

	pipeline  *patterns.Pipeline
	engine    *alerts.Engine
	collector *alerts.Collector

	aggMu sync.Mutex
	agg   *aggregator.Aggregator

	bus *handlers.PartitionedBus
	wsm *ws.ConnectionManager
}

// New creates the application shell. All wiring happens in Start so that a
// construction failure surfaces as an error, not a half-built process.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Start wires every subsystem, runs until a shutdown signal or a terminal
// stream failure, then shuts down gracefully.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.ctx = ctx
	a.startTime = time.Now()

	a.log = logger.New(a.cfg.LogLevel)
	defer a.log.Sync()
	a.m = metrics.New()

	// fatal carries terminal subsystem failures into the run loop.
	fatal := make(chan error, 1)

	// 1. PostgreSQL (raw pool for shard stores + gorm for model repos)
	a.log.Info("🗄️  connecting to postgres",
		zap.String("host", a.cfg.DatabaseHost), zap.String("db", a.cfg.DatabaseName))
	pq, err := database.NewConnection(database.Config{
		Host:     a.cfg.DatabaseHost,
		Port:     a.cfg.DatabasePort,
		User:     a.cfg.DatabaseUser,
		Password: a.cfg.DatabasePassword,
		DBName:   a.cfg.DatabaseName,
		MaxConns: a.cfg.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	a.pq = pq

	dbPort, err := strconv.Atoi(a.cfg.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}
	gdb, err := database.Connect(a.cfg.DatabaseHost, dbPort, a.cfg.DatabaseName,
		a.cfg.DatabaseUser, a.cfg.DatabasePassword)
	if err != nil {
		return fmt.Errorf("gorm connection failed: %w", err)
	}
	a.gdb = gdb
	if err := gdb.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 2. Redis (optional; nil client disables caching)
	a.log.Info("🧠 connecting to redis", zap.String("host", a.cfg.RedisHost))
	a.redis = cache.NewRedisClient(a.cfg.RedisHost, a.cfg.RedisPort, a.cfg.RedisPassword, a.log)
	a.mc = cache.NewMarketCache(a.redis, a.m, a.cfg.Monitor.Periods)

	// 3. Event fan-out: SSE broker plus optional webhook receivers
	a.broker = realtime.NewBroker(a.log)
	go a.broker.Run(ctx)
	a.webhooks = notifications.NewWebhookManager(a.cfg.AlertWebhookURLs, a.log)
	publisher := &fanout{sinks: []eventSink{a.broker}}
	if a.webhooks.Enabled() {
		publisher.sinks = append(publisher.sinks, a.webhooks)
		go a.webhooks.Run(ctx)
	}

	// 4. Exchange client + symbol registry. The first reconcile is
	// mandatory: without a symbol universe there is nothing to watch.
	exch := exchange.NewClient(a.cfg.ExchangeRESTURL, a.log)
	cfgRepo := monitorcfg.NewRepository(gdb.DB())
	symRepo := symbolsdb.NewRepository(gdb.DB())
	a.registry = symbols.NewRegistry(exch, symRepo, cfgRepo, a.mc, a.cfg.Symbols, a.log)
	a.log.Info("📡 reconciling contract symbols...")
	if err := a.registry.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial symbol reconcile failed: %w", err)
	}
	go a.registry.Run(ctx)
	symbolsFn := func() []string { return a.registry.EnabledOrEmpty(ctx) }

	// 5. Sharded stores and their writer goroutines
	a.snaps = snapshots.NewStore(pq, a.log, a.m)
	go a.snaps.RunWriter(ctx)
	a.candleStore = candles.NewStore(pq, a.log, a.m)
	go a.candleStore.RunWriter(ctx)

	// 6. Pattern pipeline + alert engine
	a.markTable = handlers.NewMarkPriceTable()
	a.tickerTable = handlers.NewTickerTable()
	gain24h := func(symbol string) (float64, bool) {
		stats, ok := a.tickerTable.Get(symbol)
		return stats.PriceChangePct, ok
	}
	a.pipeline, err = patterns.NewPipeline(a.cfg.Pattern, gain24h, a.log, a.m)
	if err != nil {
		return fmt.Errorf("pattern pipeline: %w", err)
	}
	alertRepo := alertsdb.NewRepository(gdb.DB())
	a.collector = alerts.NewCollector(a.cfg.Batch.Window, a.cfg.Batch.CollectedTypes,
		alertRepo, publisher, a.log, a.m)
	a.engine = alerts.NewEngine(a.cfg.Pattern.AlertCooldown, alertRepo, publisher,
		a.collector, a.log, a.m)

	a.agg, err = aggregator.New(klineSourceInterval, aggTargets(a.cfg.Pattern.Intervals), a.log)
	if err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}

	// Warm the indicator engines before any partition worker starts. The
	// per-(symbol, interval) engines are single-owner state, so warmup
	// must finish before live candles can reach them.
	enabled := symbolsFn()
	a.warmupPipeline(ctx, enabled)

	// 7. Stream dispatch: partitioned kline bus, event handlers, socket
	a.bus = handlers.NewPartitionedBus("kline", 0, a.processKline, a.log, a.m)
	a.bus.Start(ctx)

	hm := handlers.NewHandlerManager(a.log)
	hm.Register(handlers.NewKlineHandler(ctx, a.bus))
	hm.Register(handlers.NewMarkPriceHandler(a.markTable))
	hm.Register(handlers.NewTickerHandler(a.tickerTable))

	a.wsm = ws.NewConnectionManager(a.cfg.ExchangeWSURL, hm.Route, a.log, a.m)
	a.log.Info("🔌 connecting market stream", zap.String("url", a.cfg.ExchangeWSURL))
	if err := a.wsm.Connect(); err != nil {
		return fmt.Errorf("market stream connection failed: %w", err)
	}
	if err := a.wsm.SetStreams(symbols.StreamList(enabled, []string{klineSourceInterval})); err != nil {
		return fmt.Errorf("stream subscription failed: %w", err)
	}
	a.log.Info("✅ market stream connected", zap.Int("symbols", len(enabled)))
	go func() {
		if err := a.wsm.Run(ctx); err != nil && ctx.Err() == nil {
			fatal <- fmt.Errorf("market stream terminated: %w", err)
		}
	}()
	go a.wsm.RunHealthMonitor(ctx)

	// 8. OI monitoring: mark sampler, ratio poller, snapshot poller, sweep
	sampler := monitor.NewMarkSampler(a.markTable, a.cfg.Monitor.MAWindowSamples)
	go sampler.Run(ctx)
	ratios := monitor.NewRatioPoller(exch, symbolsFn, a.cfg.Monitor.RatioPollInterval, a.log)
	go ratios.Run(ctx)

	sink := &snapshotSink{store: a.snaps, mc: a.mc}
	oiPoller := monitor.NewOIPoller(exch, a.markTable, sink, symbolsFn,
		a.cfg.Monitor.SweepInterval, a.cfg.Monitor.SnapshotSourceTag,
		a.cfg.Monitor.SweepConcurrency, a.log)
	go oiPoller.Run(ctx)

	thresholds := monitor.NewThresholdResolver(cfgRepo, a.mc, a.cfg.Monitor.ThresholdPct, a.log)
	enricher := monitor.NewEnricher(a.snaps, a.markTable, ratios, sampler)
	anomRepo := anomalies.NewRepository(gdb.DB())
	detector := monitor.NewDetector(a.cfg.Monitor, a.snaps, anomRepo, thresholds,
		enricher, publisher, symbolsFn, a.log, a.m)
	go detector.Run(ctx)

	// 9. Read API
	var redisPinger api.Pinger
	if a.redis != nil {
		redisPinger = a.redis
	}
	apiServer := api.NewServer(anomRepo, alertRepo, a.registry, a.mc, a.broker,
		a.m.Handler(), pq, redisPinger, a.statusSnapshot, a.log)
	go func() {
		if err := apiServer.Start(ctx, a.cfg.APIPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal <- fmt.Errorf("api server failed: %w", err)
		}
	}()

	// 10. Periodic maintenance
	go a.runRetention(ctx)
	go a.refreshStreams(ctx)

	a.log.Info("🚀 startup complete",
		zap.Int("api_port", a.cfg.APIPort),
		zap.Int("enabled_symbols", len(enabled)))

	return a.run(cancel, fatal)
}

// run blocks until an interrupt or a terminal failure, then drives the
// graceful shutdown sequence.
func (a *App) run(cancel context.CancelFunc, fatal chan error) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var cause error
	select {
	case <-interrupt:
		a.log.Info("🛑 shutdown signal received")
	case cause = <-fatal:
		a.log.Error("terminal failure, shutting down", zap.Error(cause))
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	complete := make(chan struct{})
	go func() {
		// Drain order: partitions first so no candle is mid-flight,
		// then the pending batch window, then buffered writes.
		a.bus.Wait()
		a.collector.Flush()
		a.candleStore.Flush(shutdownCtx)

		if err := a.wsm.Close(); err != nil {
			a.log.Warn("stream close failed", zap.Error(err))
		}
		if err := a.gdb.Close(); err != nil {
			a.log.Warn("gorm close failed", zap.Error(err))
		}
		if err := a.pq.Close(); err != nil {
			a.log.Warn("postgres close failed", zap.Error(err))
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.log.Warn("redis close failed", zap.Error(err))
			}
		}
		close(complete)
	}()

	select {
	case <-complete:
		a.log.Info("✅ graceful shutdown completed")
		return cause
	case <-shutdownCtx.Done():
		a.log.Error("⚠️  shutdown timeout exceeded, forcing exit")
		if cause != nil {
			return cause
		}
		return fmt.Errorf("shutdown timeout")
	}
}

// processKline is the partition worker body. Final source candles are
// persisted, rolled up into the target intervals and run through the
// detectors; provisional updates feed only the progressive volume-surge
// ladder.
func (a *App) processKline(ev ws.Event) {
	k, ok := ev.(ws.KlineEvent)
	if !ok {
		return
	}

	if !k.IsFinal {
		a.dispatchHits(a.pipeline.ProcessProvisional(k.Candle))
		return
	}

	a.appendCandle(k.Candle)
	a.dispatchHits(a.pipeline.ProcessFinal(k.Candle))

	// The aggregator's WIP map spans symbols across partitions.
	a.aggMu.Lock()
	rolled := a.agg.Process(k.Candle)
	a.aggMu.Unlock()

	for _, rc := range rolled {
		a.appendCandle(rc)
		a.dispatchHits(a.pipeline.ProcessFinal(rc))
	}
}

func (a *App) appendCandle(c types.Candle) {
	if !a.candleStore.Append(a.ctx, c) {
		a.log.Warn("candle buffer full, dropping",
			zap.String("symbol", c.Symbol), zap.String("interval", c.Interval))
	}
}

func (a *App) dispatchHits(hits []*patterns.Hit) {
	for _, h := range hits {
		if _, err := a.engine.Process(h); err != nil {
			a.log.Warn("alert processing failed",
				zap.String("symbol", h.Symbol), zap.String("type", h.Type), zap.Error(err))
		}
	}
}

// warmupPipeline replays recent candles through the indicator engines so
// the detectors have history before the first live candle closes.
func (a *App) warmupPipeline(ctx context.Context, enabled []string) {
	loaded := 0
	for _, symbol := range enabled {
		for _, interval := range a.cfg.Pattern.Intervals {
			if ctx.Err() != nil {
				return
			}
			window, err := a.candleStore.GetRecent(ctx, symbol, interval, warmupDepth)
			if err != nil || len(window) == 0 {
				continue
			}
			a.pipeline.Warmup(window)
			loaded += len(window)
		}
	}
	a.log.Info("pattern warmup complete",
		zap.Int("symbols", len(enabled)), zap.Int("candles", loaded))
}

// runRetention drops expired shards daily at 01:00 shard-local time and
// pre-creates tomorrow's snapshot shard.
func (a *App) runRetention(ctx context.Context) {
	for {
		next := nextRetentionRun(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		a.retentionPass(ctx)
	}
}

// nextRetentionRun returns the next 01:00 in the shard timezone.
func nextRetentionRun(now time.Time) time.Time {
	loc := database.ShardLocation()
	local := now.In(loc)
	run := time.Date(local.Year(), local.Month(), local.Day(), 1, 0, 0, 0, loc)
	if !run.After(local) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

func (a *App) retentionPass(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if dropped, err := a.snaps.DropOldShards(opCtx, a.cfg.Retention.SnapshotDays); err != nil {
		a.log.Warn("snapshot retention failed", zap.Error(err))
	} else if len(dropped) > 0 {
		a.log.Info("snapshot shards dropped", zap.Strings("tables", dropped))
	}

	if dropped, err := a.candleStore.Cleanup(opCtx, a.cfg.Retention.CandleDays); err != nil {
		a.log.Warn("candle retention failed", zap.Error(err))
	} else if len(dropped) > 0 {
		a.log.Info("candle shards dropped", zap.Strings("tables", dropped))
	}

	tomorrow := database.ShardDateOf(time.Now().AddDate(0, 0, 1))
	if err := a.snaps.EnsureShard(opCtx, tomorrow); err != nil {
		a.log.Warn("shard pre-creation failed", zap.String("date", tomorrow), zap.Error(err))
	}
}

// refreshStreams re-derives the subscription list each reconcile period so
// newly listed contracts start streaming without a restart.
func (a *App) refreshStreams(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Symbols.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enabled := a.registry.EnabledOrEmpty(ctx)
			if len(enabled) == 0 {
				continue
			}
			streams := symbols.StreamList(enabled, []string{klineSourceInterval})
			if err := a.wsm.SetStreams(streams); err != nil {
				a.log.Warn("stream list refresh failed", zap.Error(err))
			}
		}
	}
}

// statusSnapshot feeds GET /api/status.
func (a *App) statusSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"uptime":                time.Since(a.startTime).Round(time.Second).String(),
		"stream_connected":      a.wsm.Connected(),
		"sse_clients":           a.broker.ClientCount(),
		"pending_batch_signals": a.collector.PendingCount(),
		"enabled_symbols":       len(a.registry.EnabledOrEmpty(a.ctx)),
		"webhooks_enabled":      a.webhooks.Enabled(),
	}
}

// aggTargets is the configured interval set minus the streamed source.
func aggTargets(intervals []string) []string {
	out := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		if iv != klineSourceInterval {
			out = append(out, iv)
		}
	}
	return out
}

// eventSink is anything alert and anomaly events fan out to.
type eventSink interface {
	Broadcast(event string, payload interface{})
}

// fanout forwards each event to every attached sink.
type fanout struct {
	sinks []eventSink
}

func (f *fanout) Broadcast(event string, payload interface{}) {
	for _, s := range f.sinks {
		s.Broadcast(event, payload)
	}
}

// snapshotSink chains cache invalidation onto the snapshot writer queue so
// readers never serve a stale latest/hist entry after new rows land.
type snapshotSink struct {
	store *snapshots.Store
	mc    *cache.MarketCache
}

func (s *snapshotSink) Enqueue(ctx context.Context, batch []types.OISnapshot) bool {
	for i := range batch {
		s.mc.InvalidateSnapshot(ctx, batch[i].Symbol)
	}
	return s.store.Enqueue(ctx, batch)
}
