package db

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveSQLiteDSNDefaultsUnderStateDir(t *testing.T) {
	dir := t.TempDir()
	dsn, err := ResolveSQLiteDSN("", dir, DefaultConfig().SQLite)
	if err != nil {
		t.Fatalf("ResolveSQLiteDSN() error = %v", err)
	}
	if !strings.HasPrefix(dsn, filepath.Join(dir, "auditdesk.sqlite")+"?") {
		t.Fatalf("dsn = %q", dsn)
	}
	for _, want := range []string{"busy_timeout%285000%29", "journal_mode%28WAL%29", "foreign_keys%281%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestResolveSQLiteDSNKeepsExplicitDSN(t *testing.T) {
	dsn, err := ResolveSQLiteDSN("/tmp/x.sqlite?_pragma=busy_timeout(1)", "", SQLiteConfig{WAL: true})
	if err != nil {
		t.Fatalf("ResolveSQLiteDSN() error = %v", err)
	}
	if dsn != "/tmp/x.sqlite?_pragma=busy_timeout(1)" {
		t.Fatalf("dsn = %q", dsn)
	}
	if _, err := ResolveSQLiteDSN("", "", SQLiteConfig{}); err == nil {
		t.Fatalf("expected error without path and state dir")
	}
}

func TestOpenSQLiteMigrates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "settings.sqlite")
	gdb, err := OpenSQLite(cfg, "")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if !gdb.Migrator().HasTable("settings") {
		t.Fatalf("settings table missing after migrate")
	}
}
