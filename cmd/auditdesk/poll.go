package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/auditdesk/internal/ingress"
	"github.com/quailyquaily/auditdesk/internal/logutil"
)

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Receive updates by long polling (removes any registered webhook)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.telegram.DeleteWebhook(ctx); err != nil {
				logger.Warn("delete_webhook_failed", "error", err.Error())
			}

			go runJanitor(ctx, rt, viper.GetDuration("janitor.interval"))

			timeout := flagOrViperDuration(cmd, "timeout", "telegram.poll_timeout")
			logger.Info("poll_start", "timeout", timeout.String())
			err = ingress.Poll(ctx, rt.telegram, rt.dispatcher, timeout, logger)
			rt.dispatcher.Drain()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().Duration("timeout", 30*time.Second, "Long polling timeout.")
	return cmd
}
