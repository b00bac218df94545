package symbols

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
)

// Repository handles database operations for contract symbols
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new symbols repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ReplaceAll reconciles the symbol table against a freshly fetched exchange
// listing inside one transaction: every row is disabled first, then each
// listed symbol is upserted as enabled. Symbols absent from the listing end
// up disabled; rows are never deleted so historical data keeps its referent.
func (r *Repository) ReplaceAll(listed []models.ContractSymbol) error {
	if len(listed) == 0 {
		return fmt.Errorf("ReplaceAll: refusing to disable all symbols with empty listing")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ContractSymbol{}).
			Where("enabled = ?", true).
			Update("enabled", false).Error; err != nil {
			return fmt.Errorf("ReplaceAll disable: %w", err)
		}

		now := time.Now()
		for i := range listed {
			listed[i].Enabled = true
			listed[i].UpdatedAt = now
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_asset", "quote_asset", "contract_type", "status",
				"enabled", "price_precision", "quantity_precision",
				"step_size", "min_notional", "updated_at",
			}),
		}).CreateInBatches(listed, 200).Error
		if err != nil {
			return fmt.Errorf("ReplaceAll upsert: %w", err)
		}
		return nil
	})
}

// GetEnabled returns enabled symbols ordered by priority then name.
func (r *Repository) GetEnabled() ([]models.ContractSymbol, error) {
	var out []models.ContractSymbol
	err := r.db.Where("enabled = ?", true).
		Order("priority DESC, symbol ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("GetEnabled: %w", err)
	}
	return out, nil
}

// GetBySymbol returns one symbol row, or nil when unknown.
func (r *Repository) GetBySymbol(symbol string) (*models.ContractSymbol, error) {
	var row models.ContractSymbol
	err := r.db.Where("symbol = ?", symbol).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBySymbol: %w", err)
	}
	return &row, nil
}

// CountEnabled returns how many symbols are currently enabled.
func (r *Repository) CountEnabled() (int64, error) {
	var n int64
	err := r.db.Model(&models.ContractSymbol{}).Where("enabled = ?", true).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("CountEnabled: %w", err)
	}
	return n, nil
}
