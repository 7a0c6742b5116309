package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quailyquaily/auditdesk/db"
)

func exerciseWriter(t *testing.T, w Writer) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := w.Get(ctx, KeyBotToken); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
	}
	if err := w.Set(ctx, Entry{Key: KeyBotToken, Value: "1:a", Description: "bot token"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := w.Set(ctx, Entry{Key: KeyBotToken, Value: "1:b", Description: "rotated"}); err != nil {
		t.Fatalf("Set(overwrite) error = %v", err)
	}
	if err := w.Set(ctx, Entry{Key: KeyAdminChatID, Value: "5"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := w.Set(ctx, Entry{Key: "  "}); err == nil {
		t.Fatalf("Set(blank key) expected error")
	}

	e, ok, err := w.Get(ctx, KeyBotToken)
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if e.Value != "1:b" || e.Description != "rotated" {
		t.Fatalf("Get() = %+v", e)
	}
	list, err := w.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Key != KeyAdminChatID || list[1].Key != KeyBotToken {
		t.Fatalf("List() = %+v", list)
	}
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	exerciseWriter(t, store)
}

func TestGormStore(t *testing.T) {
	cfg := db.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "settings.sqlite")
	gdb, err := db.OpenSQLite(cfg, "")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	exerciseWriter(t, NewGormStore(gdb))
}
