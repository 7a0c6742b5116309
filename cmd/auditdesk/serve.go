package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/auditdesk/internal/ingress"
	"github.com/quailyquaily/auditdesk/internal/logutil"
	"github.com/quailyquaily/auditdesk/internal/retryutil"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram webhook endpoint",
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

			bind := flagOrViperString(cmd, "bind", "server.bind")
			port := flagOrViperInt(cmd, "port", "server.port")
			path := flagOrViperString(cmd, "path", "webhook.path")
			secret := flagOrViperString(cmd, "secret", "webhook.secret")

			router := ingress.NewRouter(ingress.ServerOptions{
				Path:       path,
				Secret:     secret,
				Dispatcher: rt.dispatcher,
				Logger:     logger,
				Sink:       rt.sink,
			})
			srv := &http.Server{
				Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go runJanitor(ctx, rt, viper.GetDuration("janitor.interval"))

			if flagOrViperBool(cmd, "register", "webhook.register_on_start") {
				publicURL := strings.TrimSpace(viper.GetString("webhook.public_url"))
				if publicURL == "" {
					logger.Warn("webhook_register_skipped", "reason", "webhook.public_url is empty")
				} else {
					go func() {
						err := retryutil.Do(ctx, logger, "set_webhook", retryutil.Policy{
							Attempts: 5,
							Delay:    2 * time.Second,
							Timeout:  viper.GetDuration("telegram.request_timeout"),
						}, func(ctx context.Context) error {
							return rt.telegram.SetWebhook(ctx, publicURL, secret, telegramapi.DefaultAllowedUpdates)
						})
						if err != nil {
							logger.Error("webhook_register_failed", "url", publicURL, "error", err.Error())
							return
						}
						logger.Info("webhook_registered", "url", publicURL)
					}()
				}
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server_start", "addr", srv.Addr, "path", path, "secret_set", secret != "")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("server_shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server_shutdown_failed", "error", err.Error())
			}
			rt.dispatcher.Drain()
			return nil
		},
	}

	cmd.Flags().String("bind", "127.0.0.1", "Bind address.")
	cmd.Flags().Int("port", 8080, "Listen port.")
	cmd.Flags().String("path", ingress.DefaultWebhookPath, "Webhook path.")
	cmd.Flags().String("secret", "", "Webhook secret token (checked against the Telegram secret header).")
	cmd.Flags().Bool("register", false, "Register webhook.public_url with Telegram on start.")

	return cmd
}
