package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"socialscope/internal/store"
)

func newWipeCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Permanently delete all locally captured study data",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !force {
				fmt.Fprint(out, "This permanently deletes every locally captured session, event, and alert.\nType 'wipe' to confirm: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read confirmation: %w", err)
				}
				if strings.TrimSpace(answer) != "wipe" {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			return ctx.withStore(func(st *store.Store) error {
				if err := st.Wipe(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Local study data wiped")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}
