package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/viper"

	"github.com/quailyquaily/auditdesk/approval"
	"github.com/quailyquaily/auditdesk/assist"
	"github.com/quailyquaily/auditdesk/conversation"
	"github.com/quailyquaily/auditdesk/db"
	"github.com/quailyquaily/auditdesk/internal/debuglog"
	"github.com/quailyquaily/auditdesk/internal/ingress"
	"github.com/quailyquaily/auditdesk/internal/statepaths"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
	"github.com/quailyquaily/auditdesk/providers/generative"
	"github.com/quailyquaily/auditdesk/settings"
)

// openSettingsStore returns the store selected by settings.driver. The
// closer releases database handles.
func openSettingsStore(ctx context.Context) (settings.Writer, func(), error) {
	driver := strings.ToLower(strings.TrimSpace(viper.GetString("settings.driver")))
	dsn := strings.TrimSpace(viper.GetString("settings.dsn"))
	switch driver {
	case "", "sqlite":
		cfg := db.DefaultConfig()
		cfg.DSN = dsn
		cfg.SQLite.BusyTimeoutMs = viper.GetInt("settings.sqlite.busy_timeout_ms")
		cfg.SQLite.WAL = viper.GetBool("settings.sqlite.wal")
		cfg.Pool.MaxOpenConns = viper.GetInt("settings.pool.max_open_conns")
		cfg.Pool.MaxIdleConns = viper.GetInt("settings.pool.max_idle_conns")
		cfg.AutoMigrate = viper.GetBool("settings.auto_migrate")
		gdb, err := db.OpenSQLite(cfg, statepaths.FileStateDir())
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return settings.NewGormStore(gdb), closer, nil
	case "postgres", "postgresql":
		if dsn == "" {
			return nil, nil, fmt.Errorf("settings.driver=postgres requires settings.dsn")
		}
		pool, err := settings.ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		store := settings.NewPostgresStore(pool)
		if viper.GetBool("settings.auto_migrate") {
			if err := store.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return store, pool.Close, nil
	case "file":
		store, err := settings.NewFileStore(statepaths.SettingsFilePath())
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown settings.driver: %s", driver)
	}
}

type runtime struct {
	logger     *slog.Logger
	live       *settings.Live
	telegram   *telegramapi.Client
	sink       *debuglog.Sink
	approvals  *approval.Orchestrator
	machine    *conversation.Machine
	dispatcher *ingress.Dispatcher
	closers    []func()
}

func (rt *runtime) Close() {
	if rt.dispatcher != nil {
		rt.dispatcher.Close()
	}
	_ = rt.sink.Close()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// newSettings opens the store and resolves the first snapshot. A store that
// cannot be opened degrades to environment-only settings.
func newSettings(ctx context.Context, logger *slog.Logger) (*settings.Live, func()) {
	var store settings.Store
	closer := func() {}
	writer, c, err := openSettingsStore(ctx)
	if err != nil {
		logger.Warn("settings_store_unavailable", "driver", viper.GetString("settings.driver"), "error", err.Error())
	} else {
		store, closer = writer, c
	}
	resolver := settings.NewResolver(settings.ResolverOptions{Store: store, Logger: logger})
	return settings.NewLive(ctx, resolver), closer
}

func newTelegramClient(live *settings.Live, logger *slog.Logger) *telegramapi.Client {
	return telegramapi.New(telegramapi.Options{
		HTTPClient:     &http.Client{Timeout: viper.GetDuration("telegram.request_timeout") + viper.GetDuration("telegram.poll_timeout")},
		BaseURL:        viper.GetString("telegram.base_url"),
		Token:          func() string { return live.Current().BotToken },
		GroupBridgeURL: func() string { return live.Current().GroupBridgeURL },
		Logger:         logger,
	})
}

func buildRuntime(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{logger: logger}
	live, closer := newSettings(ctx, logger)
	rt.live = live
	rt.closers = append(rt.closers, closer)
	rt.telegram = newTelegramClient(live, logger)

	sinkPath := ""
	if viper.GetBool("debug_log.enabled") {
		sinkPath = statepaths.DebugLogPath()
	}
	rt.sink = debuglog.Open(debuglog.Options{
		Path:           sinkPath,
		RotateMaxBytes: viper.GetInt64("debug_log.rotate_max_bytes"),
		Logger:         logger,
	})

	assistAdapter := assist.New(assist.Options{
		Keys: live.Resolver(),
		Client: generative.New(
			viper.GetString("assist.endpoint"),
			viper.GetString("assist.version"),
			viper.GetString("assist.model"),
		),
		Sink:           rt.sink,
		Logger:         logger,
		AttemptTimeout: viper.GetDuration("assist.attempt_timeout"),
	})

	var pending approval.Store
	switch strings.ToLower(strings.TrimSpace(viper.GetString("approvals.store"))) {
	case "memory":
		pending = approval.NewMemoryStore()
	case "", "file":
		fileStore, err := approval.NewFileStore(statepaths.PendingApprovalsPath(), statepaths.LockRoot())
		if err != nil {
			rt.Close()
			return nil, err
		}
		pending = fileStore
	default:
		rt.Close()
		return nil, fmt.Errorf("unknown approvals.store: %s", viper.GetString("approvals.store"))
	}

	orch, err := approval.New(approval.Options{
		Store:     pending,
		Messenger: rt.telegram,
		Settings:  live,
		Assist:    assistAdapter,
		Sink:      rt.sink,
		Logger:    logger,
		TTL:       viper.GetDuration("approvals.ttl"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.approvals = orch

	machine, err := conversation.New(conversation.Options{
		Store:     conversation.NewStore(viper.GetDuration("conversation.ttl")),
		Messenger: rt.telegram,
		Submitter: orch,
		Admin:     orch,
		Settings:  live,
		Reloader:  live,
		Assist:    assistAdapter,
		Logger:    logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.machine = machine

	dispatcher, err := ingress.NewDispatcher(ingress.DispatcherOptions{
		Messages:       machine,
		Callbacks:      orch,
		Notifier:       rt.telegram,
		Logger:         logger,
		Sink:           rt.sink,
		MaxConcurrency: viper.GetInt("dispatch.max_concurrency"),
		DedupSize:      viper.GetInt("dispatch.dedup_size"),
		DedupTTL:       viper.GetDuration("dispatch.dedup_ttl"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.dispatcher = dispatcher

	snap := live.Current()
	logger.Info("runtime_ready",
		"bot_token_set", snap.BotToken != "",
		"admin_configured", snap.AdminConfigured(),
		"ai_replies", snap.AIRepliesEnabled,
		"auto_group", snap.AutoGroupEnabled,
		"debug_log", rt.sink.Path(),
	)
	return rt, nil
}
