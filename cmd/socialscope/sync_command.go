package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"socialscope/internal/logging"
	"socialscope/internal/remote"
	"socialscope/internal/store"
	"socialscope/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass against the remote study store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Sync.RemoteURL == "" {
				return errors.New("sync.remote_url is not configured")
			}

			uploader, err := remote.New(
				cfg.Sync.RemoteURL,
				cfg.Sync.APIToken,
				time.Duration(cfg.Sync.RequestTimeout)*time.Second,
			)
			if err != nil {
				return err
			}

			return ctx.withStore(func(st *store.Store) error {
				engine := syncer.New(st, uploader, logging.NewNop(), syncer.Options{
					BatchSize:     cfg.Sync.BatchSize,
					ParticipantID: cfg.Study.ParticipantID,
				})

				out := cmd.OutOrStdout()
				total := syncer.Result{}
				for {
					result := engine.SyncOnce(cmd.Context())
					if result.Err != nil {
						return result.Err
					}
					total.Events += result.Events
					total.Sessions += result.Sessions
					total.StatusLogs += result.StatusLogs
					total.Alerts += result.Alerts
					if result.Events == 0 && result.StatusLogs == 0 && result.Alerts == 0 {
						break
					}
				}

				fmt.Fprintf(out, "Synced %d events, %d sessions, %d status logs, %d alerts\n",
					total.Events, total.Sessions, total.StatusLogs, total.Alerts)
				return nil
			})
		},
	}
}
