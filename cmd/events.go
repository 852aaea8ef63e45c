package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/spf13/cobra"
)

// NewEventsCmd creates the `events` command.
func NewEventsCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream daemon events",
		Long: `Prints the events published by gitbutlerd as they happen: closed
sessions, registry changes and failed checks. Requires a running daemon.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			socket := daemon.SocketPath(cfg)
			if !daemon.Reachable(socket) {
				return errors.DaemonUnavailable(socket, nil)
			}

			client := daemon.NewRemoteClient(socket)
			defer client.Close()

			events, err := client.StreamEvents(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			jsonOutput := cli.GetOptions(cmd).JSONOutput
			enc := json.NewEncoder(cmd.OutOrStdout())
			for ev := range events {
				if jsonOutput {
					if err := enc.Encode(ev); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %s\n",
					ev.Timestamp.Local().Format(historyTimeFormat), ev.Type, ev.ProjectID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only show events of this project")
	return cmd
}
