package models

import "time"

// ContractSymbol represents one perpetual futures contract tracked by the
// engine. Rows are reconciled from the exchange on startup and on a fixed
// cadence afterwards.
//
// Key Fields:
//   - Symbol: contract identifier, e.g. BTCUSDT (unique)
//   - Status: exchange trading status (TRADING, BREAK, SETTLING)
//   - Enabled: whether the engine monitors this symbol; symbols that leave
//     the exchange listing are disabled, never deleted, so historical
//     snapshots and alerts keep their referent
//   - PricePrecision/QuantityPrecision/StepSize/MinNotional: exchange
//     filters used for alert price rounding and downstream order sizing
type ContractSymbol struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol            string     `gorm:"size:32;uniqueIndex;not null" json:"symbol"`
	BaseAsset         string     `gorm:"size:16" json:"base_asset"`
	QuoteAsset        string     `gorm:"size:16" json:"quote_asset"`
	ContractType      string     `gorm:"size:20" json:"contract_type"`
	Status            string     `gorm:"size:16" json:"status"`
	Enabled           bool       `gorm:"index;not null;default:false" json:"enabled"`
	Priority          int        `gorm:"default:0" json:"priority"`
	PricePrecision    int        `json:"price_precision"`
	QuantityPrecision int        `json:"quantity_precision"`
	StepSize          float64    `json:"step_size"`
	MinNotional       float64    `json:"min_notional"`
	ListedAt          *time.Time `json:"listed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName specifies the table name for ContractSymbol
func (ContractSymbol) TableName() string {
	return "contract_symbols_config"
}

// OIAnomalyRecord is one detected open-interest anomaly: the relative OI
// change over a lookback window exceeded the effective threshold for the
// symbol. Records are created once by the detector and never mutated.
//
// Key Fields:
//   - PeriodSeconds: lookback window length (300 for 5m ... 14400 for 4h)
//   - OIBefore/OIAfter: oldest and newest open interest inside the window
//   - PercentChange: (oi_after - oi_before) / oi_before * 100
//   - ThresholdValue: the threshold that fired (per-symbol override or global)
//   - Severity: high if |pc| >= high threshold, medium if >= medium, else low
//
// Enrichment fields are nullable: the detector fills what the enrichment
// feeds can answer at scan time and leaves the rest NULL. A failed
// enrichment never blocks the anomaly row itself.
type OIAnomalyRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol         string    `gorm:"size:32;index;not null" json:"symbol"`
	PeriodSeconds  int       `gorm:"index;not null" json:"period_seconds"`
	OIBefore       float64   `gorm:"not null" json:"oi_before"`
	OIAfter        float64   `gorm:"not null" json:"oi_after"`
	PercentChange  float64   `gorm:"not null" json:"percent_change"`
	ThresholdValue float64   `gorm:"not null" json:"threshold_value"`
	Severity       string    `gorm:"size:8;index;not null" json:"severity"`
	AnomalyTime    time.Time `gorm:"index;not null" json:"anomaly_time"`

	// Price context
	PriceBefore    *float64 `json:"price_before,omitempty"`
	PriceAfter     *float64 `json:"price_after,omitempty"`
	PriceChangePct *float64 `json:"price_change_pct,omitempty"`

	// Funding context
	FundingBefore *float64 `json:"funding_before,omitempty"`
	FundingAfter  *float64 `json:"funding_after,omitempty"`

	// Intraday extremes and breakout flags
	High24h            *float64 `json:"high_24h,omitempty"`
	Low24h             *float64 `json:"low_24h,omitempty"`
	DistFromHigh24hPct *float64 `json:"dist_from_high_24h_pct,omitempty"`
	DistFromLow24hPct  *float64 `json:"dist_from_low_24h_pct,omitempty"`
	Low2h              *float64 `json:"low_2h,omitempty"`
	DistFromLow2hPct   *float64 `json:"dist_from_low_2h_pct,omitempty"`
	High30m            *float64 `json:"high_30m,omitempty"`
	Low30m             *float64 `json:"low_30m,omitempty"`
	Broke30mHigh       *bool    `json:"broke_30m_high,omitempty"`
	Broke30mLow        *bool    `json:"broke_30m_low,omitempty"`

	// Positioning context
	GlobalLongShortRatio    *float64 `json:"global_long_short_ratio,omitempty"`
	TopTraderLongShortRatio *float64 `json:"top_trader_long_short_ratio,omitempty"`

	// Moving averages over recent 1m mark prices, with trend labels
	MA10       *float64 `gorm:"column:ma10" json:"ma10,omitempty"`
	MA30       *float64 `gorm:"column:ma30" json:"ma30,omitempty"`
	MA60       *float64 `gorm:"column:ma60" json:"ma60,omitempty"`
	MA120      *float64 `gorm:"column:ma120" json:"ma120,omitempty"`
	MA240      *float64 `gorm:"column:ma240" json:"ma240,omitempty"`
	TrendShort *string  `gorm:"size:8" json:"trend_short,omitempty"`
	TrendLong  *string  `gorm:"size:8" json:"trend_long,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for OIAnomalyRecord
func (OIAnomalyRecord) TableName() string {
	return "oi_anomaly_records"
}

// MonitorConfigEntry is a runtime-mutable configuration row. Values are
// JSON-encoded; readers cache them for 10 minutes.
//
// Known keys: threshold:{symbol}:{period}, threshold:default:{period},
// blacklist (JSON array of substrings).
type MonitorConfigEntry struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConfigKey   string    `gorm:"size:128;uniqueIndex;not null" json:"config_key"`
	ConfigValue string    `gorm:"type:text;not null" json:"config_value"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for MonitorConfigEntry
func (MonitorConfigEntry) TableName() string {
	return "oi_monitoring_config"
}

// VolumeAlert persists candle-shape and volume alerts: VOLUME_SURGE,
// HAMMER, PERFECT_HAMMER, DOJI, BULLISH_STREAK. The unique index backs
// insert-ignore duplicate suppression.
type VolumeAlert struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol         string    `gorm:"size:32;not null;uniqueIndex:uq_volume_alert" json:"symbol"`
	Interval       string    `gorm:"size:8;not null;uniqueIndex:uq_volume_alert" json:"interval"`
	AlertType      string    `gorm:"size:24;index;not null;uniqueIndex:uq_volume_alert" json:"alert_type"`
	KlineTime      int64     `gorm:"index;not null;uniqueIndex:uq_volume_alert" json:"kline_time"`
	CurrentPrice   float64   `gorm:"not null" json:"current_price"`
	Volume         float64   `json:"volume"`
	BaselineVolume float64   `json:"baseline_volume"`
	VolumeMultiple float64   `json:"volume_multiple"`
	TierLevel      float64   `json:"tier_level"`
	Provisional    bool      `json:"provisional"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for VolumeAlert
func (VolumeAlert) TableName() string {
	return "volume_alerts"
}

// SRAlert persists support/resistance interaction alerts (TOUCHED,
// APPROACHING), squeeze alerts and pullback-ready alerts, together with
// the breakout predictor's scores at emit time.
type SRAlert struct {
	ID            int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol        string   `gorm:"size:32;not null;uniqueIndex:uq_sr_alert" json:"symbol"`
	Interval      string   `gorm:"size:8;not null;uniqueIndex:uq_sr_alert" json:"interval"`
	AlertType     string   `gorm:"size:24;index;not null;uniqueIndex:uq_sr_alert" json:"alert_type"`
	LevelType *string `gorm:"size:12" json:"level_type,omitempty"`
	// LevelKey is the formatted level price, or "-" for alerts without a
	// level. It stands in for level_price in the unique index because
	// Postgres treats NULLs as distinct there, which would disable
	// duplicate suppression for level-less alert types.
	LevelKey      string   `gorm:"size:32;not null;default:'-';uniqueIndex:uq_sr_alert" json:"level_key"`
	LevelPrice    *float64 `json:"level_price,omitempty"`
	LevelStrength *float64 `json:"level_strength,omitempty"`
	KlineTime     int64    `gorm:"index;not null;uniqueIndex:uq_sr_alert" json:"kline_time"`
	CurrentPrice  float64  `gorm:"not null" json:"current_price"`
	DistancePct   *float64 `json:"distance_pct,omitempty"`

	// SQUEEZE context
	SqueezePct *float64 `json:"squeeze_pct,omitempty"`

	// PULLBACK_READY context
	RetracePct      *float64 `json:"retrace_pct,omitempty"`
	VolumeShrinkPct *float64 `json:"volume_shrink_pct,omitempty"`

	// Breakout predictor scores at emit time
	BreakoutScore      *float64 `json:"breakout_score,omitempty"`
	VolatilityScore    *float64 `json:"volatility_score,omitempty"`
	VolumeScore        *float64 `json:"volume_score,omitempty"`
	MAConvergenceScore *float64 `json:"ma_convergence_score,omitempty"`
	PositionScore      *float64 `json:"position_score,omitempty"`
	PatternScore       *float64 `json:"pattern_score,omitempty"`
	PredictedDirection *string  `gorm:"size:8" json:"predicted_direction,omitempty"`

	Gain24hPct  *float64  `json:"gain_24h_pct,omitempty"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for SRAlert
func (SRAlert) TableName() string {
	return "sr_alerts"
}

// BreakoutSignal is one member of a flushed batch from the signal
// collector. Members of the same flush share a BatchID so downstream
// consumers can apply per-wave capacity limits.
type BreakoutSignal struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID            string    `gorm:"size:36;index;not null" json:"batch_id"`
	Symbol             string    `gorm:"size:32;not null;uniqueIndex:uq_breakout_signal" json:"symbol"`
	Interval           string    `gorm:"size:8;not null;uniqueIndex:uq_breakout_signal" json:"interval"`
	AlertType          string    `gorm:"size:24;not null;uniqueIndex:uq_breakout_signal" json:"alert_type"`
	KlineTime          int64     `gorm:"index;not null;uniqueIndex:uq_breakout_signal" json:"kline_time"`
	CurrentPrice       float64   `json:"current_price"`
	BreakoutScore      *float64  `json:"breakout_score,omitempty"`
	PredictedDirection *string   `gorm:"size:8" json:"predicted_direction,omitempty"`
	Description        string    `gorm:"type:text" json:"description"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for BreakoutSignal
func (BreakoutSignal) TableName() string {
	return "kline_breakout_signals"
}
