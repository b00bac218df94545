package snapshots

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
	opTimeout   = 5 * time.Second
	insertChunk = 500 // rows per INSERT statement
)

// Store persists open-interest snapshots into daily shard tables named
// open_interest_snapshots_YYYYMMDD. Shard dates use Beijing time (UTC+8)
// while timestamp_ms columns stay raw UTC milliseconds; the two must not
// be reconciled, operators rely on the shard naming.
type Store struct {
	db      *sql.DB
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	created map[string]bool // shard dates known to exist

	ch chan []types.OISnapshot
}

// NewStore creates a snapshot store on top of the raw connection pool.
func NewStore(db *database.DB, log *zap.Logger, m *metrics.Metrics) *Store {
	return &Store{
		db:      db.Conn(),
		log:     log.Named("snapshots"),
		metrics: m,
		created: make(map[string]bool),
		ch:      make(chan []types.OISnapshot, 64),
	}
}

func tableFor(date string) string {
	return database.SnapshotShardPrefix + date
}

// EnsureShard idempotently creates the shard table for a date suffix.
// Creation races are tolerated: an "already exists" error counts as success.
func (s *Store) EnsureShard(ctx context.Context, date string) error {
	s.mu.Lock()
	if s.created[date] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	table := tableFor(date)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(32) NOT NULL,
			open_interest DOUBLE PRECISION NOT NULL,
			timestamp_ms BIGINT NOT NULL,
			snapshot_time TIMESTAMPTZ NOT NULL,
			mark_price DOUBLE PRECISION,
			funding_rate DOUBLE PRECISION,
			next_funding_time BIGINT,
			CONSTRAINT uq_%s UNIQUE (symbol, timestamp_ms)
		)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_snapshot_time ON %s (snapshot_time)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_symbol ON %s (symbol)`, table, table),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if database.IsDuplicateTable(err) {
				continue
			}
			return fmt.Errorf("EnsureShard %s: %w", table, err)
		}
	}

	s.mu.Lock()
	s.created[date] = true
	s.mu.Unlock()
	return nil
}

// SaveBatch buckets snapshots by shard date, creates missing shards and
// inserts each bucket ignoring duplicate (symbol, timestamp_ms) rows.
// Returns the number of rows actually written.
func (s *Store) SaveBatch(ctx context.Context, snaps []types.OISnapshot) (int64, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	buckets := make(map[string][]types.OISnapshot)
	for _, sn := range snaps {
		date := database.ShardDate(sn.TimestampMs)
		buckets[date] = append(buckets[date], sn)
	}

	var written int64
	for date, bucket := range buckets {
		if err := s.EnsureShard(ctx, date); err != nil {
			return written, err
		}
		n, err := s.insertBucket(ctx, tableFor(date), bucket)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *Store) insertBucket(ctx context.Context, table string, bucket []types.OISnapshot) (int64, error) {
	var written int64
	for start := 0; start < len(bucket); start += insertChunk {
		end := start + insertChunk
		if end > len(bucket) {
			end = len(bucket)
		}
		chunk := bucket[start:end]

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf(
			"INSERT INTO %s (symbol, open_interest, timestamp_ms, snapshot_time, mark_price, funding_rate, next_funding_time) VALUES ",
			table,
		))
		args := make([]interface{}, 0, len(chunk)*7)
		for i, sn := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 7
			sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7))
			args = append(args,
				sn.Symbol, sn.OpenInterest, sn.TimestampMs, sn.SnapshotTime,
				nullFloat(sn.MarkPrice), nullFloat(sn.FundingRate), nullInt(sn.NextFundingTime),
			)
		}
		sb.WriteString(" ON CONFLICT (symbol, timestamp_ms) DO NOTHING")

		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		res, err := s.db.ExecContext(opCtx, sb.String(), args...)
		cancel()
		if err != nil {
			if database.IsDuplicateKey(err) {
				continue
			}
			return written, fmt.Errorf("SaveBatch %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}
	return written, nil
}

// GetRange returns snapshots for a symbol within [fromMs, toMs] ascending
// by timestamp_ms, merging every intersecting daily shard. Missing shards
// are skipped; if every shard is missing, the legacy unified table is
// consulted as a fallback.
func (s *Store) GetRange(ctx context.Context, symbol string, fromMs, toMs int64) ([]types.OISnapshot, error) {
	dates := database.ShardDatesBetween(fromMs, toMs)
	var out []types.OISnapshot
	allMissing := true

	for _, date := range dates {
		rows, err := s.queryRange(ctx, tableFor(date), symbol, fromMs, toMs)
		if err != nil {
			if database.IsUndefinedTable(err) {
				continue
			}
			return nil, err
		}
		allMissing = false
		out = append(out, rows...)
	}

	if allMissing {
		rows, err := s.queryRange(ctx, database.LegacySnapshotTable, symbol, fromMs, toMs)
		if err != nil {
			if database.IsUndefinedTable(err) {
				return nil, nil
			}
			return nil, err
		}
		return rows, nil
	}
	return out, nil
}

func (s *Store) queryRange(ctx context.Context, table, symbol string, fromMs, toMs int64) ([]types.OISnapshot, error) {
	query := fmt.Sprintf(`SELECT symbol, open_interest, timestamp_ms, snapshot_time, mark_price, funding_rate, next_funding_time
		FROM %s WHERE symbol = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC`, table)

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(opCtx, query, symbol, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// GetLatest returns the most recent snapshot for a symbol, probing today's
// shard, then yesterday's, then the legacy table. database.ErrNoData when
// nothing is found anywhere.
func (s *Store) GetLatest(ctx context.Context, symbol string) (*types.OISnapshot, error) {
	now := time.Now()
	tables := []string{
		tableFor(database.ShardDateOf(now)),
		tableFor(database.ShardDateOf(now.AddDate(0, 0, -1))),
		database.LegacySnapshotTable,
	}

	for _, table := range tables {
		snap, err := s.queryLatest(ctx, table, symbol)
		if err != nil {
			if database.IsUndefinedTable(err) {
				continue
			}
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}
	return nil, database.ErrNoData
}

func (s *Store) queryLatest(ctx context.Context, table, symbol string) (*types.OISnapshot, error) {
	query := fmt.Sprintf(`SELECT symbol, open_interest, timestamp_ms, snapshot_time, mark_price, funding_rate, next_funding_time
		FROM %s WHERE symbol = $1 ORDER BY timestamp_ms DESC LIMIT 1`, table)

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(opCtx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// GetDailyExtremes returns the MIN/MAX mark price recorded in one day's
// shard. database.ErrNoData when the shard is missing or has no priced rows.
func (s *Store) GetDailyExtremes(ctx context.Context, symbol, date string) (low, high float64, err error) {
	query := fmt.Sprintf(`SELECT MIN(mark_price), MAX(mark_price) FROM %s
		WHERE symbol = $1 AND mark_price IS NOT NULL`, tableFor(date))

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var lo, hi sql.NullFloat64
	if err := s.db.QueryRowContext(opCtx, query, symbol).Scan(&lo, &hi); err != nil {
		if database.IsUndefinedTable(err) {
			return 0, 0, database.ErrNoData
		}
		return 0, 0, fmt.Errorf("GetDailyExtremes: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, database.ErrNoData
	}
	return lo.Float64, hi.Float64, nil
}

// DropOldShards drops snapshot shards older than keepDays (by Beijing date)
// and returns the dropped table names. The legacy unified table is never
// dropped.
func (s *Store) DropOldShards(ctx context.Context, keepDays int) ([]string, error) {
	if keepDays <= 0 {
		keepDays = database.DefaultShardRetentionDays
	}
	cutoff := database.ShardDateOf(time.Now().AddDate(0, 0, -keepDays))

	query := `SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE $1`
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	rows, err := s.db.QueryContext(opCtx, query, database.SnapshotShardPrefix+"%")
	cancel()
	if err != nil {
		return nil, fmt.Errorf("DropOldShards list: %w", err)
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
		date := strings.TrimPrefix(name, database.SnapshotShardPrefix)
		if len(date) != 8 || date >= cutoff {
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		_, err := s.db.ExecContext(opCtx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
		cancel()
		if err != nil {
			return dropped, fmt.Errorf("DropOldShards %s: %w", name, err)
		}
		s.mu.Lock()
		delete(s.created, date)
		s.mu.Unlock()
		dropped = append(dropped, name)
	}
	return dropped, nil
}

// Enqueue hands a batch to the writer goroutine, blocking while the write
// queue is full. Returns false if ctx is cancelled first.
func (s *Store) Enqueue(ctx context.Context, batch []types.OISnapshot) bool {
	if len(batch) == 0 {
		return true
	}
	select {
	case s.ch <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// RunWriter drains the write queue on a single goroutine so per-symbol
// snapshot order is preserved. On shutdown the remaining queue is flushed
// with a bounded grace period.
func (s *Store) RunWriter(ctx context.Context) {
	s.log.Info("snapshot writer started")
	for {
		select {
		case batch := <-s.ch:
			s.write(ctx, batch)
		case <-ctx.Done():
			s.drain()
			s.log.Info("snapshot writer stopped")
			return
		}
	}
}

func (s *Store) write(ctx context.Context, batch []types.OISnapshot) {
	n, err := s.SaveBatch(ctx, batch)
	if err != nil {
		s.metrics.SnapshotWriteErrors.Inc()
		s.log.Error("snapshot batch write failed",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}
	s.metrics.SnapshotsWritten.Add(float64(n))
}

func (s *Store) drain() {
	graceCtx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for {
		select {
		case batch := <-s.ch:
			s.write(graceCtx, batch)
		default:
			return
		}
	}
}

func scanSnapshots(rows *sql.Rows) ([]types.OISnapshot, error) {
	var out []types.OISnapshot
	for rows.Next() {
		var (
			sn   types.OISnapshot
			mark sql.NullFloat64
			fund sql.NullFloat64
			next sql.NullInt64
		)
		if err := rows.Scan(&sn.Symbol, &sn.OpenInterest, &sn.TimestampMs, &sn.SnapshotTime, &mark, &fund, &next); err != nil {
			return nil, err
		}
		if mark.Valid {
			v := mark.Float64
			sn.MarkPrice = &v
		}
		if fund.Valid {
			v := fund.Float64
			sn.FundingRate = &v
		}
		if next.Valid {
			v := next.Int64
			sn.NextFundingTime = &v
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
