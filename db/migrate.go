package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/quailyquaily/auditdesk/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite opens the settings database through gorm and applies the pool
// limits. SQLite tolerates a single writer, so the defaults keep one connection.
func OpenSQLite(cfg Config, stateDir string) (*gorm.DB, error) {
	if d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d != "" && d != "sqlite" {
		return nil, fmt.Errorf("unsupported gorm driver: %s", cfg.Driver)
	}
	dsn, err := ResolveSQLiteDSN(cfg.DSN, stateDir, cfg.SQLite)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}
	if cfg.AutoMigrate {
		if err := AutoMigrate(gdb); err != nil {
			return nil, err
		}
	}
	return gdb, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	return gdb.AutoMigrate(&models.Setting{})
}
