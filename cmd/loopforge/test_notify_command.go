package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loopforge/internal/notifications"
)

func newTestNotifyCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cc.ensure()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.WebhookURL) == "" && strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification backends configured; set webhook_url or ntfy_topic first.")
				return nil
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			if err := notifications.NewService(cfg).TestNotification(ctx); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
