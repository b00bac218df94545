package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Exchange endpoints
	ExchangeWSURL   string
	ExchangeRESTURL string

	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseMaxConns int

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// API server
	APIPort  int
	LogLevel string

	// Monitoring configuration
	Monitor MonitorConfig

	// Pattern detection configuration
	Pattern PatternConfig

	// Batch signal collection
	Batch BatchConfig

	// Data retention
	Retention RetentionConfig

	// Symbol registry
	Symbols SymbolConfig

	// Webhook receivers (optional, comma-separated URLs)
	AlertWebhookURLs []string
}

// MonitorConfig holds open-interest anomaly monitoring parameters
type MonitorConfig struct {
	SweepInterval      time.Duration
	Periods            []string // lookback windows, e.g. 5m,15m,30m,1h,2h,4h
	ThresholdPct       float64  // global percent-change threshold
	DedupDeltaPct      float64  // min |change| difference vs previous anomaly
	SeverityHighPct    float64
	SeverityMediumPct  float64
	SweepConcurrency   int
	RatioPollInterval  time.Duration
	SnapshotSourceTag  string
	MAWindowSamples    int // 1m mark-price samples kept for MA enrichment
	EnrichmentDisabled bool
}

// PatternConfig holds kline pattern detection parameters
type PatternConfig struct {
	Intervals           []string // intervals detectors run on
	VolumeSurgeTiers    []float64
	SqueezeMaxGapPct    float64 // |EMA20-EMA60|/price upper bound, percent
	BullishStreakLength int
	SRClusterPct        float64 // max cluster width as percent of price
	SRMinTouches        int
	SRMaxLevels         int
	SRTouchedPct        float64
	SRApproachingPct    float64
	MinBreakoutScore    float64
	Min24hGainPct       float64 // alternate S/R alert gate
	AlertCooldown       time.Duration
	EngineCacheSize     int // per-(symbol,interval) engine LRU capacity
}

// BatchConfig holds batch signal collector parameters
type BatchConfig struct {
	Window         time.Duration
	CollectedTypes []string
}

// RetentionConfig holds shard retention parameters
type RetentionConfig struct {
	SnapshotDays int
	CandleDays   int
}

// SymbolConfig holds symbol registry parameters
type SymbolConfig struct {
	ReconcileInterval time.Duration
	Blacklist         []string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		ExchangeWSURL:   getEnvOrDefault("EXCHANGE_WS_URL", "wss://fstream.binance.com/stream"),
		ExchangeRESTURL: getEnvOrDefault("EXCHANGE_REST_URL", "https://fapi.binance.com"),

		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "trading_master"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "trading"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "trading123"),
		DatabaseMaxConns: getEnvInt("DB_MAX_CONNS", 20),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort:  getEnvInt("API_PORT", 8080),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		Monitor: MonitorConfig{
			SweepInterval:     getEnvDuration("MONITOR_SWEEP_INTERVAL", 60*time.Second),
			Periods:           getEnvList("MONITOR_PERIODS", []string{"5m", "15m", "30m", "1h", "2h", "4h"}),
			ThresholdPct:      getEnvFloat("MONITOR_THRESHOLD_PCT", 5.0),
			DedupDeltaPct:     getEnvFloat("MONITOR_DEDUP_DELTA_PCT", 1.0),
			SeverityHighPct:   getEnvFloat("MONITOR_SEVERITY_HIGH_PCT", 30.0),
			SeverityMediumPct: getEnvFloat("MONITOR_SEVERITY_MEDIUM_PCT", 15.0),
			SweepConcurrency:  getEnvInt("MONITOR_SWEEP_CONCURRENCY", 8),
			RatioPollInterval: getEnvDuration("MONITOR_RATIO_POLL_INTERVAL", 5*time.Minute),
			SnapshotSourceTag: getEnvOrDefault("MONITOR_SNAPSHOT_SOURCE", "rest_poll"),
			MAWindowSamples:   getEnvInt("MONITOR_MA_WINDOW_SAMPLES", 240),
		},

		Pattern: PatternConfig{
			Intervals:           getEnvList("PATTERN_INTERVALS", []string{"5m", "15m", "1h", "4h"}),
			VolumeSurgeTiers:    getEnvFloatList("PATTERN_VOLUME_SURGE_TIERS", []float64{5, 10, 15, 20}),
			SqueezeMaxGapPct:    getEnvFloat("PATTERN_SQUEEZE_MAX_GAP_PCT", 0.03),
			BullishStreakLength: getEnvInt("PATTERN_BULLISH_STREAK_LENGTH", 5),
			SRClusterPct:        getEnvFloat("PATTERN_SR_CLUSTER_PCT", 0.5),
			SRMinTouches:        getEnvInt("PATTERN_SR_MIN_TOUCHES", 2),
			SRMaxLevels:         getEnvInt("PATTERN_SR_MAX_LEVELS", 15),
			SRTouchedPct:        getEnvFloat("PATTERN_SR_TOUCHED_PCT", 0.1),
			SRApproachingPct:    getEnvFloat("PATTERN_SR_APPROACHING_PCT", 0.5),
			MinBreakoutScore:    getEnvFloat("PATTERN_MIN_BREAKOUT_SCORE", 60.0),
			Min24hGainPct:       getEnvFloat("PATTERN_MIN_24H_GAIN_PCT", 10.0),
			AlertCooldown:       getEnvDuration("PATTERN_ALERT_COOLDOWN", 30*time.Minute),
			EngineCacheSize:     getEnvInt("PATTERN_ENGINE_CACHE_SIZE", 2048),
		},

		Batch: BatchConfig{
			Window:         getEnvDuration("BATCH_WINDOW", 2*time.Second),
			CollectedTypes: getEnvList("BATCH_COLLECTED_TYPES", []string{"PERFECT_HAMMER"}),
		},

		Retention: RetentionConfig{
			SnapshotDays: getEnvInt("RETENTION_SNAPSHOT_DAYS", 20),
			CandleDays:   getEnvInt("RETENTION_CANDLE_DAYS", 20),
		},

		Symbols: SymbolConfig{
			ReconcileInterval: getEnvDuration("SYMBOL_RECONCILE_INTERVAL", 30*time.Minute),
			Blacklist:         getEnvList("SYMBOL_BLACKLIST", nil),
		},

		AlertWebhookURLs: getEnvList("ALERT_WEBHOOK_URLS", nil),
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets environment variable as time.Duration or returns default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvList gets environment variable as comma-separated list or returns default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvFloatList gets environment variable as comma-separated floats or returns default value
func getEnvFloatList(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%f", &f); err == nil {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
