package alerts

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database"
	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
)

// Repository handles database operations for persisted alerts and batch
// breakout signals.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new alerts repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveVolumeAlert persists one volume/candle-shape alert. Returns false
// when the row was dropped by the duplicate-suppression unique index.
func (r *Repository) SaveVolumeAlert(a *models.VolumeAlert) (bool, error) {
	if err := r.db.Create(a).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("SaveVolumeAlert: %w", err)
	}
	return true, nil
}

// SaveSRAlert persists one support/resistance, squeeze or pullback alert.
// Returns false when dropped as a duplicate.
func (r *Repository) SaveSRAlert(a *models.SRAlert) (bool, error) {
	if err := r.db.Create(a).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("SaveSRAlert: %w", err)
	}
	return true, nil
}

// SaveBreakoutSignals persists one flushed collector batch. Duplicate rows
// inside a retried batch are skipped, everything else is written.
func (r *Repository) SaveBreakoutSignals(signals []*models.BreakoutSignal) error {
	if len(signals) == 0 {
		return nil
	}
	for _, sig := range signals {
		if err := r.db.Create(sig).Error; err != nil {
			if database.IsDuplicateKey(err) {
				continue
			}
			return fmt.Errorf("SaveBreakoutSignals: %w", err)
		}
	}
	return nil
}

// ListFilter narrows alert listings. Zero values mean "no filter".
type ListFilter struct {
	Symbol    string
	Interval  string
	AlertType string
	Since     time.Time
	Limit     int
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Symbol != "" {
		query = query.Where("symbol = ?", f.Symbol)
	}
	if f.Interval != "" {
		query = query.Where("interval = ?", f.Interval)
	}
	if f.AlertType != "" {
		query = query.Where("alert_type = ?", f.AlertType)
	}
	if !f.Since.IsZero() {
		query = query.Where("created_at >= ?", f.Since)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return query.Limit(limit)
}

// ListVolumeAlerts returns volume alerts matching the filter, newest first.
func (r *Repository) ListVolumeAlerts(f ListFilter) ([]models.VolumeAlert, error) {
	var out []models.VolumeAlert
	if err := f.apply(r.db.Order("created_at DESC")).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ListVolumeAlerts: %w", err)
	}
	return out, nil
}

// ListSRAlerts returns S/R alerts matching the filter, newest first.
func (r *Repository) ListSRAlerts(f ListFilter) ([]models.SRAlert, error) {
	var out []models.SRAlert
	if err := f.apply(r.db.Order("created_at DESC")).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ListSRAlerts: %w", err)
	}
	return out, nil
}

// ListBreakoutSignals returns collector batch members, newest first.
func (r *Repository) ListBreakoutSignals(f ListFilter) ([]models.BreakoutSignal, error) {
	var out []models.BreakoutSignal
	if err := f.apply(r.db.Order("created_at DESC")).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ListBreakoutSignals: %w", err)
	}
	return out, nil
}
