package monitorcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
)

// ErrNotFound indicates the config key has no row.
var ErrNotFound = errors.New("config key not found")

// Repository handles database operations for runtime-mutable monitoring
// configuration. Values are JSON-encoded strings; callers cache reads for
// 10 minutes, so writes take up to that long to propagate.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new monitor config repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the raw JSON value for a key.
func (r *Repository) Get(key string) (string, error) {
	var entry models.MonitorConfigEntry
	err := r.db.Where("config_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("Get %s: %w", key, err)
	}
	return entry.ConfigValue, nil
}

// Set upserts a key with a JSON-encoded value.
func (r *Repository) Set(key string, value interface{}, description string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("Set %s: %w", key, err)
	}

	entry := models.MonitorConfigEntry{
		ConfigKey:   key,
		ConfigValue: string(raw),
		Description: description,
		UpdatedAt:   time.Now(),
	}
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"config_value", "description", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("Set %s: %w", key, err)
	}
	return nil
}

// thresholdValue is the JSON shape stored under threshold:* keys.
type thresholdValue struct {
	Percent float64 `json:"percent"`
}

// GetThreshold resolves the effective OI percent-change threshold for
// (symbol, period): per-symbol override first, then the stored default for
// the period. ErrNotFound when neither key exists; the caller falls back to
// the env-configured global default.
func (r *Repository) GetThreshold(symbol, period string) (float64, error) {
	for _, key := range []string{
		fmt.Sprintf("threshold:%s:%s", symbol, period),
		fmt.Sprintf("threshold:default:%s", period),
	} {
		raw, err := r.Get(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		var v thresholdValue
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return 0, fmt.Errorf("GetThreshold %s: bad JSON: %w", key, err)
		}
		return v.Percent, nil
	}
	return 0, ErrNotFound
}

// GetBlacklist returns the stored blacklist substrings, or nil when the
// key is absent.
func (r *Repository) GetBlacklist() ([]string, error) {
	raw, err := r.Get("blacklist")
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("GetBlacklist: bad JSON: %w", err)
	}
	return list, nil
}
