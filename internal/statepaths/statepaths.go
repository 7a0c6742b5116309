package statepaths

import (
	"path/filepath"
	"strings"

	"github.com/quailyquaily/auditdesk/internal/fsstore"
	"github.com/spf13/viper"
)

const (
	DefaultStateDir         = "~/.auditdesk"
	DebugLogFilename        = "debug.jsonl"
	PendingFilename         = "pending_approvals.json"
	SettingsFilename        = "settings.json"
	SQLiteFilename          = "auditdesk.sqlite"
	settingsDriverFileValue = "file"
)

func FileStateDir() string {
	dir := strings.TrimSpace(viper.GetString("file_state_dir"))
	if dir == "" {
		dir = DefaultStateDir
	}
	return filepath.Clean(fsstore.ExpandHome(dir))
}

// resolve returns configured as an absolute-ish path, or <state dir>/fallback
// when configured is empty. Relative paths stay relative to the working dir.
func resolve(configured string, fallback string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return filepath.Join(FileStateDir(), fallback)
	}
	return filepath.Clean(fsstore.ExpandHome(configured))
}

func DebugLogPath() string {
	return resolve(viper.GetString("debug_log.path"), DebugLogFilename)
}

func PendingApprovalsPath() string {
	return resolve(viper.GetString("approvals.file"), PendingFilename)
}

// SettingsFilePath is the JSON settings file used by the "file" driver. For
// that driver settings.dsn may name the file directly.
func SettingsFilePath() string {
	if strings.EqualFold(strings.TrimSpace(viper.GetString("settings.driver")), settingsDriverFileValue) {
		return resolve(viper.GetString("settings.dsn"), SettingsFilename)
	}
	return filepath.Join(FileStateDir(), SettingsFilename)
}

func LockRoot() string {
	return filepath.Join(FileStateDir(), ".fslocks")
}
