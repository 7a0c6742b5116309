package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	// Global
	viper.SetDefault("file_state_dir", "~/.auditdesk")

	// Settings store
	viper.SetDefault("settings.driver", "sqlite")
	viper.SetDefault("settings.dsn", "")
	viper.SetDefault("settings.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("settings.sqlite.wal", true)
	viper.SetDefault("settings.pool.max_open_conns", 1)
	viper.SetDefault("settings.pool.max_idle_conns", 1)
	viper.SetDefault("settings.auto_migrate", true)

	// Telegram
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.request_timeout", 30*time.Second)
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)

	// Webhook server
	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("webhook.path", "/telegram/webhook")
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.public_url", "")
	viper.SetDefault("webhook.register_on_start", false)

	// Dispatch
	viper.SetDefault("dispatch.max_concurrency", 8)
	viper.SetDefault("dispatch.dedup_size", 2048)
	viper.SetDefault("dispatch.dedup_ttl", 10*time.Minute)

	// Generative assist
	viper.SetDefault("assist.endpoint", "https://generativelanguage.googleapis.com")
	viper.SetDefault("assist.version", "v1beta2")
	viper.SetDefault("assist.model", "text-bison-001")
	viper.SetDefault("assist.attempt_timeout", 15*time.Second)

	// Debug log
	viper.SetDefault("debug_log.enabled", true)
	viper.SetDefault("debug_log.path", "")
	viper.SetDefault("debug_log.rotate_max_bytes", int64(5*1024*1024))

	// Approvals and intake
	viper.SetDefault("approvals.store", "file")
	viper.SetDefault("approvals.file", "")
	viper.SetDefault("approvals.ttl", 7*24*time.Hour)
	viper.SetDefault("conversation.ttl", 24*time.Hour)
	viper.SetDefault("janitor.interval", 10*time.Minute)
}
