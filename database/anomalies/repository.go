package anomalies

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
)

// Repository handles database operations for OI anomaly records
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new anomalies repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save persists one anomaly record.
func (r *Repository) Save(rec *models.OIAnomalyRecord) error {
	if err := r.db.Create(rec).Error; err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// GetLatest returns the most recent anomaly for (symbol, period), or nil
// when the pair has never fired. Used by the dedup check.
func (r *Repository) GetLatest(symbol string, periodSeconds int) (*models.OIAnomalyRecord, error) {
	var rec models.OIAnomalyRecord
	err := r.db.Where("symbol = ? AND period_seconds = ?", symbol, periodSeconds).
		Order("anomaly_time DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatest: %w", err)
	}
	return &rec, nil
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Symbol        string
	PeriodSeconds int
	Severity      string
	Since         time.Time
	Limit         int
}

// List returns anomaly records matching the filter, newest first.
func (r *Repository) List(f ListFilter) ([]models.OIAnomalyRecord, error) {
	query := r.db.Order("anomaly_time DESC")

	if f.Symbol != "" {
		query = query.Where("symbol = ?", f.Symbol)
	}
	if f.PeriodSeconds > 0 {
		query = query.Where("period_seconds = ?", f.PeriodSeconds)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if !f.Since.IsZero() {
		query = query.Where("anomaly_time >= ?", f.Since)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var out []models.OIAnomalyRecord
	if err := query.Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

// SymbolCount is one row of the per-symbol anomaly leaderboard.
type SymbolCount struct {
	Symbol string `json:"symbol"`
	Count  int64  `json:"count"`
}

// DailyStats aggregates one Beijing-time day of anomaly records.
type DailyStats struct {
	Date       string           `json:"date"`
	Total      int64            `json:"total"`
	BySeverity map[string]int64 `json:"by_severity"`
	ByPeriod   map[int]int64    `json:"by_period"`
	TopSymbols []SymbolCount    `json:"top_symbols"`
}

// GetDailyStats aggregates anomaly counts for one day. The date suffix is
// interpreted in the shard timezone so it lines up with shard naming.
func (r *Repository) GetDailyStats(date string, topN int) (*DailyStats, error) {
	dayStart, err := time.ParseInLocation(database.ShardDateLayout, date, database.ShardLocation())
	if err != nil {
		return nil, fmt.Errorf("GetDailyStats: bad date %q: %w", date, err)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)
	if topN <= 0 {
		topN = 10
	}

	stats := &DailyStats{
		Date:       date,
		BySeverity: make(map[string]int64),
		ByPeriod:   make(map[int]int64),
	}

	base := func() *gorm.DB {
		return r.db.Model(&models.OIAnomalyRecord{}).
			Where("anomaly_time >= ? AND anomaly_time < ?", dayStart, dayEnd)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("GetDailyStats count: %w", err)
	}

	var sevRows []struct {
		Severity string
		Cnt      int64
	}
	if err := base().Select("severity, count(*) as cnt").Group("severity").Scan(&sevRows).Error; err != nil {
		return nil, fmt.Errorf("GetDailyStats severity: %w", err)
	}
	for _, row := range sevRows {
		stats.BySeverity[row.Severity] = row.Cnt
	}

	var periodRows []struct {
		PeriodSeconds int
		Cnt           int64
	}
	if err := base().Select("period_seconds, count(*) as cnt").Group("period_seconds").Scan(&periodRows).Error; err != nil {
		return nil, fmt.Errorf("GetDailyStats period: %w", err)
	}
	for _, row := range periodRows {
		stats.ByPeriod[row.PeriodSeconds] = row.Cnt
	}

	var topRows []SymbolCount
	if err := base().Select("symbol, count(*) as count").
		Group("symbol").Order("count DESC").Limit(topN).
		Scan(&topRows).Error; err != nil {
		return nil, fmt.Errorf("GetDailyStats top symbols: %w", err)
	}
	stats.TopSymbols = topRows

	return stats, nil
}
