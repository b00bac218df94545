package database

import "time"

// Shard table naming. Snapshot and candle tables are created per calendar
// day, with the day taken in Beijing time (UTC+8) while timestamp columns
// stay raw UTC milliseconds. Readers and writers must agree on this split.
const (
	SnapshotShardPrefix = "open_interest_snapshots_"
	CandleShardPrefix   = "candles_" // full name: candles_{interval}_{yyyymmdd}
	LegacySnapshotTable = "open_interest_snapshots"

	ShardDateLayout = "20060102"
)

// DefaultShardRetentionDays is how many daily shards are kept when no
// retention override is configured.
const DefaultShardRetentionDays = 20

var shardLoc = loadShardLocation()

func loadShardLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// ShardLocation returns the timezone used for shard date bucketing.
func ShardLocation() *time.Location {
	return shardLoc
}

// ShardDate formats a Unix millisecond timestamp as the shard date suffix.
func ShardDate(tsMs int64) string {
	return time.UnixMilli(tsMs).In(shardLoc).Format(ShardDateLayout)
}

// ShardDateOf formats a time as the shard date suffix.
func ShardDateOf(t time.Time) string {
	return t.In(shardLoc).Format(ShardDateLayout)
}

// ShardDatesBetween lists every shard date suffix touched by the inclusive
// millisecond range [fromMs, toMs], oldest first.
func ShardDatesBetween(fromMs, toMs int64) []string {
	if toMs < fromMs {
		return nil
	}
	start := time.UnixMilli(fromMs).In(shardLoc)
	end := time.UnixMilli(toMs).In(shardLoc)

	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, shardLoc)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, shardLoc)

	var dates []string
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(ShardDateLayout))
	}
	return dates
}
