package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Check the bot token by calling getMe",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("telegram.request_timeout"))
			defer cancel()
			client, closer, err := oneShotClient(ctx)
			if err != nil {
				return err
			}
			defer closer()
			me, err := client.GetMe(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "id=%d username=@%s name=%s\n", me.ID, me.Username, me.FirstName)
			return nil
		},
	}
}
