package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"socialscope/internal/store"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded browsing sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				sessions, err := st.ListSessions(cmd.Context(), cfg.Study.ParticipantID, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, sessions)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, session := range sessions {
					state := "open"
					ended := ""
					if session.EndedAt != nil {
						state = "ended"
						ended = formatDisplayTime(*session.EndedAt)
					}
					rows = append(rows, []string{
						session.ID,
						state,
						formatDisplayTime(session.StartedAt),
						ended,
						fmt.Sprintf("%d", session.EventCount),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "State", "Started", "Ended", "Events"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit sessions as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	return cmd
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput   bool
		limit        int
		unsyncedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List captured events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				events, err := st.ListEvents(cmd.Context(), cfg.Study.ParticipantID, unsyncedOnly, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, events)
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded")
					return nil
				}

				rows := make([][]string, 0, len(events))
				for _, event := range events {
					synced := "no"
					if event.Synced {
						synced = "yes"
					}
					rows = append(rows, []string{
						event.ID,
						string(event.Type),
						string(event.Platform),
						truncate(event.URL, 48),
						formatDisplayTime(event.OccurredAt),
						synced,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Platform", "URL", "Occurred", "Synced"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit events as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to list")
	cmd.Flags().BoolVar(&unsyncedOnly, "unsynced", false, "Only list events pending upload")
	return cmd
}

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List safety alerts and their delivery state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				alerts, err := st.ListAlerts(cmd.Context(), cfg.Study.ParticipantID, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, alerts)
				}
				if len(alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No safety alerts recorded")
					return nil
				}

				rows := make([][]string, 0, len(alerts))
				for _, alert := range alerts {
					delivery := "pending"
					switch {
					case alert.Handled:
						delivery = alert.SMSStatus
						if delivery == "" {
							delivery = "delivered"
						}
					case alert.SMSError != "":
						delivery = "failed: " + truncate(alert.SMSError, 40)
					}
					rows = append(rows, []string{
						alert.ID,
						formatDisplayTime(alert.TriggeredAt),
						delivery,
						alert.SMSSID,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Triggered", "Delivery", "SMS SID"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit alerts as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum alerts to list")
	return cmd
}

func formatDisplayTime(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format("2006-01-02 15:04:05")
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
