package candles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
)

const (
	opTimeout = 5 * time.Second

	flushThreshold = 500
	flushIdle      = 30 * time.Second

	maxRecentLookbackDays = 20
)

// Store persists final candles into daily shard tables named
// candles_{interval}_YYYYMMDD (shard date taken from open_time in Beijing
// time). Writes are buffered: a single writer goroutine flushes when the
// buffer reaches flushThreshold rows or after flushIdle without a flush.
type Store struct {
	db      *sql.DB
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	buffer  []types.Candle
	created map[string]bool

	ch chan types.Candle
}

// NewStore creates a candle store on top of the raw connection pool.
func NewStore(db *database.DB, log *zap.Logger, m *metrics.Metrics) *Store {
	return &Store{
		db:      db.Conn(),
		log:     log.Named("candles"),
		metrics: m,
		created: make(map[string]bool),
		ch:      make(chan types.Candle, 4096),
	}
}

func tableFor(interval, date string) string {
	return fmt.Sprintf("%s%s_%s", database.CandleShardPrefix, interval, date)
}

// Append queues one final candle for persistence. Blocks only if the write
// queue is saturated.
func (s *Store) Append(ctx context.Context, c types.Candle) bool {
	select {
	case s.ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// RunWriter drains the append queue, flushing by size or idle timer.
func (s *Store) RunWriter(ctx context.Context) {
	s.log.Info("candle writer started")
	ticker := time.NewTicker(flushIdle)
	defer ticker.Stop()

	for {
		select {
		case c := <-s.ch:
			s.mu.Lock()
			s.buffer = append(s.buffer, c)
			size := len(s.buffer)
			s.mu.Unlock()
			s.metrics.CandleBufferSize.Set(float64(size))
			if size >= flushThreshold {
				s.Flush(ctx)
			}
		case <-ticker.C:
			s.Flush(ctx)
		case <-ctx.Done():
			s.drain()
			graceCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
			s.Flush(graceCtx)
			cancel()
			s.log.Info("candle writer stopped")
			return
		}
	}
}

func (s *Store) drain() {
	for {
		select {
		case c := <-s.ch:
			s.mu.Lock()
			s.buffer = append(s.buffer, c)
			s.mu.Unlock()
		default:
			return
		}
	}
}

// Flush writes the current buffer, grouping rows by target shard. Rows of a
// shard whose insert failed are returned to the buffer and retried on the
// next tick.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	pending := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	start := time.Now()

	groups := make(map[string][]types.Candle)
	for _, c := range pending {
		key := c.Interval + "|" + database.ShardDate(c.OpenTime)
		groups[key] = append(groups[key], c)
	}

	var failed []types.Candle
	var written int64
	for key, group := range groups {
		parts := strings.SplitN(key, "|", 2)
		n, err := s.insertGroup(ctx, parts[0], parts[1], group)
		written += n
		if err != nil {
			s.log.Error("candle flush failed for shard",
				zap.String("interval", parts[0]), zap.String("date", parts[1]),
				zap.Int("rows", len(group)), zap.Error(err))
			failed = append(failed, group...)
		}
	}

	if len(failed) > 0 {
		s.mu.Lock()
		s.buffer = append(failed, s.buffer...)
		s.mu.Unlock()
	}

	s.mu.Lock()
	size := len(s.buffer)
	s.mu.Unlock()
	s.metrics.CandleBufferSize.Set(float64(size))
	s.metrics.CandlesWritten.Add(float64(written))
	s.metrics.CandleFlushDur.Observe(time.Since(start).Seconds())
}

func (s *Store) insertGroup(ctx context.Context, interval, date string, group []types.Candle) (int64, error) {
	if err := s.ensureShard(ctx, interval, date); err != nil {
		return 0, err
	}
	table := tableFor(interval, date)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (symbol, open_time, close_time, open, high, low, close, volume) VALUES ",
		table,
	))
	args := make([]interface{}, 0, len(group)*8)
	for i, c := range group {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, c.Symbol, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	sb.WriteString(" ON CONFLICT (symbol, open_time) DO NOTHING")

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := s.db.ExecContext(opCtx, sb.String(), args...)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) ensureShard(ctx context.Context, interval, date string) error {
	if _, ok := types.IntervalMs(interval); !ok {
		return fmt.Errorf("ensureShard: unknown interval %q", interval)
	}

	key := interval + "|" + date
	s.mu.Lock()
	if s.created[key] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	table := tableFor(interval, date)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(32) NOT NULL,
			open_time BIGINT NOT NULL,
			close_time BIGINT NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			CONSTRAINT uq_%s UNIQUE (symbol, open_time)
		)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_open_time ON %s (open_time)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if database.IsDuplicateTable(err) {
				continue
			}
			return fmt.Errorf("ensureShard %s: %w", table, err)
		}
	}

	s.mu.Lock()
	s.created[key] = true
	s.mu.Unlock()
	return nil
}

// GetRecent returns up to n most recent candles for (symbol, interval) in
// ascending open_time, walking back one day shard at a time until n rows
// are collected or the lookback limit is reached.
func (s *Store) GetRecent(ctx context.Context, symbol, interval string, n int) ([]types.Candle, error) {
	if n <= 0 {
		return nil, nil
	}

	var collected []types.Candle // newest first while collecting
	day := time.Now()
	for i := 0; i < maxRecentLookbackDays && len(collected) < n; i++ {
		date := database.ShardDateOf(day)
		rows, err := s.queryRecent(ctx, interval, date, symbol, n-len(collected))
		if err != nil {
			if database.IsUndefinedTable(err) {
				day = day.AddDate(0, 0, -1)
				continue
			}
			return nil, err
		}
		collected = append(collected, rows...)
		day = day.AddDate(0, 0, -1)
	}

	// reverse to ascending open_time
	out := make([]types.Candle, len(collected))
	for i, c := range collected {
		out[len(collected)-1-i] = c
	}
	return out, nil
}

func (s *Store) queryRecent(ctx context.Context, interval, date, symbol string, limit int) ([]types.Candle, error) {
	query := fmt.Sprintf(`SELECT symbol, open_time, close_time, open, high, low, close, volume
		FROM %s WHERE symbol = $1 ORDER BY open_time DESC LIMIT $2`, tableFor(interval, date))

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(opCtx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandles(rows, interval)
}

// GetRange returns candles for (symbol, interval) within [fromMs, toMs] by
// open_time, ascending, across every intersecting day shard.
func (s *Store) GetRange(ctx context.Context, symbol, interval string, fromMs, toMs int64) ([]types.Candle, error) {
	var out []types.Candle
	for _, date := range database.ShardDatesBetween(fromMs, toMs) {
		query := fmt.Sprintf(`SELECT symbol, open_time, close_time, open, high, low, close, volume
			FROM %s WHERE symbol = $1 AND open_time >= $2 AND open_time <= $3
			ORDER BY open_time ASC`, tableFor(interval, date))

		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		rows, err := s.db.QueryContext(opCtx, query, symbol, fromMs, toMs)
		if err != nil {
			cancel()
			if database.IsUndefinedTable(err) {
				continue
			}
			return nil, err
		}
		batch, err := scanCandles(rows, interval)
		rows.Close()
		cancel()
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Cleanup drops candle shards older than keepDays across all intervals.
func (s *Store) Cleanup(ctx context.Context, keepDays int) ([]string, error) {
	if keepDays <= 0 {
		keepDays = database.DefaultShardRetentionDays
	}
	cutoff := database.ShardDateOf(time.Now().AddDate(0, 0, -keepDays))

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	rows, err := s.db.QueryContext(opCtx,
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE $1`,
		database.CandleShardPrefix+"%")
	cancel()
	if err != nil {
		return nil, fmt.Errorf("Cleanup list: %w", err)
	}

	var candidates []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, name)
	}
	rows.Close()

	var dropped []string
	for _, name := range candidates {
		// candles_{interval}_{yyyymmdd}
		idx := strings.LastIndex(name, "_")
		if idx < 0 {
			continue
		}
		date := name[idx+1:]
		if len(date) != 8 || date >= cutoff {
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		_, err := s.db.ExecContext(opCtx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
		cancel()
		if err != nil {
			return dropped, fmt.Errorf("Cleanup %s: %w", name, err)
		}
		dropped = append(dropped, name)
	}

	if len(dropped) > 0 {
		s.mu.Lock()
		s.created = make(map[string]bool)
		s.mu.Unlock()
	}
	return dropped, nil
}

func scanCandles(rows *sql.Rows, interval string) ([]types.Candle, error) {
	var out []types.Candle
	for rows.Next() {
		var c types.Candle
		if err := rows.Scan(&c.Symbol, &c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.Interval = interval
		out = append(out, c)
	}
	return out, rows.Err()
}
