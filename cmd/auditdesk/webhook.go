package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/auditdesk/internal/logutil"
	"github.com/quailyquaily/auditdesk/internal/telegramapi"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}
	cmd.AddCommand(newWebhookSetCmd())
	cmd.AddCommand(newWebhookDeleteCmd())
	return cmd
}

// oneShotClient builds a Telegram client for commands that run a single call.
func oneShotClient(ctx context.Context) (*telegramapi.Client, func(), error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, nil, err
	}
	live, closer := newSettings(ctx, logger)
	return newTelegramClient(live, logger), closer, nil
}

func newWebhookSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Register the public webhook URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(flagOrViperString(cmd, "url", "webhook.public_url"))
			if url == "" {
				return fmt.Errorf("missing --url (or webhook.public_url)")
			}
			secret := flagOrViperString(cmd, "secret", "webhook.secret")
			ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("telegram.request_timeout"))
			defer cancel()
			client, closer, err := oneShotClient(ctx)
			if err != nil {
				return err
			}
			defer closer()
			if err := client.SetWebhook(ctx, url, secret, telegramapi.DefaultAllowedUpdates); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "webhook set: %s\n", url)
			return nil
		},
	}
	cmd.Flags().String("url", "", "Public HTTPS URL Telegram should call.")
	cmd.Flags().String("secret", "", "Secret token Telegram echoes in the secret header.")
	return cmd
}

func newWebhookDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("telegram.request_timeout"))
			defer cancel()
			client, closer, err := oneShotClient(ctx)
			if err != nil {
				return err
			}
			defer closer()
			if err := client.DeleteWebhook(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "webhook deleted")
			return nil
		},
	}
}
