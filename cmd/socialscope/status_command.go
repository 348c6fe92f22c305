package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"socialscope/internal/agent"
	"socialscope/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agent and capture pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			live, err := ctx.agentStatus()
			if err != nil {
				return err
			}
			if live != nil {
				if jsonOutput {
					return writeJSON(cmd, live)
				}
				printLiveStatus(cmd, live)
				return nil
			}

			// No agent listening; read counts straight from the store.
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"running": false, "stats": stats})
				}
				printOfflineStatus(cmd, stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func printLiveStatus(cmd *cobra.Command, status *agent.Status) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader("SocialScope Agent", colorize)
	lines = append(lines,
		renderStatusLine("Agent", statusOK, "running", colorize),
		renderStatusLine("Participant", statusInfo, status.ParticipantID, colorize),
	)
	if status.CurrentSession != "" {
		lines = append(lines, renderStatusLine("Session", statusOK, status.CurrentSession, colorize))
	} else {
		lines = append(lines, renderStatusLine("Session", statusWarn, "none open", colorize))
	}

	lines = append(lines,
		renderStatusLine("Events", statusInfo, fmt.Sprintf("%d total, %d unsynced", status.Events, status.UnsyncedEvents), colorize),
		renderStatusLine("Screenshots", statusInfo, fmt.Sprintf("%d", status.Screenshots), colorize),
		renderStatusLine("Markup captures", statusInfo, fmt.Sprintf("%d", status.MarkupCaptures), colorize),
	)

	if status.DroppedPayloads > 0 {
		lines = append(lines, renderStatusLine("Dropped payloads", statusWarn, fmt.Sprintf("%d", status.DroppedPayloads), colorize))
	}
	if status.SkippedTicks > 0 {
		lines = append(lines, renderStatusLine("Skipped ticks", statusInfo, fmt.Sprintf("%d", status.SkippedTicks), colorize))
	}

	alertKind := statusOK
	alertMsg := fmt.Sprintf("%d total", status.SafetyAlerts)
	if status.UnhandledAlerts > 0 {
		alertKind = statusError
		alertMsg = fmt.Sprintf("%d total, %d UNHANDLED", status.SafetyAlerts, status.UnhandledAlerts)
	}
	lines = append(lines, renderStatusLine("Safety alerts", alertKind, alertMsg, colorize))

	switch {
	case !status.SyncConfigured:
		lines = append(lines, renderStatusLine("Sync", statusWarn, "not configured", colorize))
	case status.LastSyncError != "":
		lines = append(lines, renderStatusLine("Sync", statusError, status.LastSyncError, colorize))
	case status.LastSyncAt != nil:
		lines = append(lines, renderStatusLine("Sync", statusOK, "last pass "+status.LastSyncAt.UTC().Format("2006-01-02 15:04:05"), colorize))
	default:
		lines = append(lines, renderStatusLine("Sync", statusInfo, "no pass yet", colorize))
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func printOfflineStatus(cmd *cobra.Command, stats store.Stats) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader("SocialScope Agent", colorize)
	lines = append(lines,
		renderStatusLine("Agent", statusWarn, "not running", colorize),
		renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d total, %d open", stats.Sessions, stats.OpenSessions), colorize),
		renderStatusLine("Events", statusInfo, fmt.Sprintf("%d total, %d unsynced", stats.Events, stats.UnsyncedEvents), colorize),
		renderStatusLine("Screenshots", statusInfo, fmt.Sprintf("%d", stats.Screenshots), colorize),
		renderStatusLine("Markup captures", statusInfo, fmt.Sprintf("%d", stats.MarkupCaptures), colorize),
	)

	alertKind := statusOK
	alertMsg := fmt.Sprintf("%d total", stats.SafetyAlerts)
	if stats.UnhandledAlerts > 0 {
		alertKind = statusError
		alertMsg = fmt.Sprintf("%d total, %d UNHANDLED", stats.SafetyAlerts, stats.UnhandledAlerts)
	}
	lines = append(lines, renderStatusLine("Safety alerts", alertKind, alertMsg, colorize))

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
