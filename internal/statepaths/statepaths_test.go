package statepaths

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestPathsFollowStateDir(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("file_state_dir", dir)

	if got := DebugLogPath(); got != filepath.Join(dir, DebugLogFilename) {
		t.Fatalf("DebugLogPath() = %q", got)
	}
	if got := PendingApprovalsPath(); got != filepath.Join(dir, PendingFilename) {
		t.Fatalf("PendingApprovalsPath() = %q", got)
	}
	if got := SettingsFilePath(); got != filepath.Join(dir, SettingsFilename) {
		t.Fatalf("SettingsFilePath() = %q", got)
	}
	if got := LockRoot(); got != filepath.Join(dir, ".fslocks") {
		t.Fatalf("LockRoot() = %q", got)
	}
}

func TestExplicitPathsWin(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("file_state_dir", t.TempDir())
	viper.Set("debug_log.path", "/var/log/auditdesk/debug.jsonl")
	viper.Set("settings.driver", "file")
	viper.Set("settings.dsn", "/etc/auditdesk/settings.json")

	if got := DebugLogPath(); got != "/var/log/auditdesk/debug.jsonl" {
		t.Fatalf("DebugLogPath() = %q", got)
	}
	if got := SettingsFilePath(); got != "/etc/auditdesk/settings.json" {
		t.Fatalf("SettingsFilePath() = %q", got)
	}
}
