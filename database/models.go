// Package database provides database connection management for the market
// surveillance engine.
//
// Two connection layers coexist on the same PostgreSQL database:
//   - A GORM connection serving the model repositories (symbols, anomaly
//     records, alerts, breakout signals, runtime config)
//   - A raw database/sql pool (connection.go) serving the daily-sharded
//     snapshot and candle stores, which need dynamic DDL and multi-row
//     insert-ignore statements outside the migrator's reach
//
// Data models live in the models_pkg package to avoid circular imports;
// this package re-exports them as type aliases.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the
// underlying DB instance.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes database connection using GORM
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema auto-migrates the model tables. Shard tables are managed by
// their stores, not the migrator.
func (d *Database) InitSchema() error {
	err := d.db.AutoMigrate(
		&ContractSymbol{},
		&OIAnomalyRecord{},
		&MonitorConfigEntry{},
		&VolumeAlert{},
		&SRAlert{},
		&BreakoutSignal{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}

// ============================================================================
// Backward Compatibility Type Aliases
// ============================================================================

// Core data models - type aliases so callers can keep importing database.
type ContractSymbol = models.ContractSymbol
type OIAnomalyRecord = models.OIAnomalyRecord
type MonitorConfigEntry = models.MonitorConfigEntry
type VolumeAlert = models.VolumeAlert
type SRAlert = models.SRAlert
type BreakoutSignal = models.BreakoutSignal
