package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"socialscope/internal/safety"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test page through the safety gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Safety.GatewayURL == "" {
				return errors.New("safety.gateway_url is not configured")
			}
			if cfg.Safety.PageTarget == "" {
				return errors.New("safety.page_target is not configured")
			}

			notifier, err := safety.NewGatewayNotifier(
				cfg.Safety.GatewayURL,
				cfg.Safety.GatewayToken,
				time.Duration(cfg.Safety.RequestTimeout)*time.Second,
			)
			if err != nil {
				return err
			}

			delivery, err := notifier.Page(cmd.Context(), cfg.Study.ParticipantID, time.Now().UTC(), cfg.Safety.PageTarget)
			if err != nil {
				return fmt.Errorf("test page failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test page accepted (sid=%s status=%s)\n", delivery.SID, delivery.Status)
			return nil
		},
	}
}
