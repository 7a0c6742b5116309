package db

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type SQLiteConfig struct {
	BusyTimeoutMs int
	WAL           bool
	ForeignKeys   bool
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver      string
	DSN         string
	Pool        PoolConfig
	SQLite      SQLiteConfig
	AutoMigrate bool
}

func DefaultConfig() Config {
	return Config{
		Driver: "sqlite",
		Pool: PoolConfig{
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		SQLite: SQLiteConfig{
			BusyTimeoutMs: 5000,
			WAL:           true,
			ForeignKeys:   true,
		},
		AutoMigrate: true,
	}
}

// ResolveSQLiteDSN turns a file path (or an existing DSN) into a DSN carrying
// the configured pragmas. An empty path falls back to <stateDir>/auditdesk.sqlite.
func ResolveSQLiteDSN(path string, stateDir string, cfg SQLiteConfig) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		stateDir = strings.TrimSpace(stateDir)
		if stateDir == "" {
			return "", fmt.Errorf("missing sqlite path and state dir")
		}
		if err := os.MkdirAll(stateDir, 0o700); err != nil {
			return "", err
		}
		path = filepath.Join(stateDir, "auditdesk.sqlite")
	}
	if strings.Contains(path, "?") || path == ":memory:" {
		return path, nil
	}

	q := url.Values{}
	if cfg.BusyTimeoutMs > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeoutMs))
	}
	if cfg.WAL {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	if cfg.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}
