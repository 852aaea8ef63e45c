package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/logging"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/grovetools/gitbutler/pkg/watcher"
	"github.com/spf13/cobra"
)

// NewSnapshotCmd creates the `snapshot` command.
func NewSnapshotCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "snapshot [path]",
		Short: "Check a project once and snapshot its session if it is finished",
		Long: `Runs a single watcher check on the repository containing path (default:
the current directory). The open session is snapshotted when it has been
idle or open for too long. With --force it is snapshotted regardless.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "gitbutler")

			if daemon.Reachable(daemon.SocketPath(cfg)) {
				logger.Warn("gitbutlerd is running and may close the same session")
			}

			project, err := resolveProject(projects.Default(), path)
			if err != nil {
				return err
			}
			w, err := watcher.New(project, cfg, nil, watcher.WithLogger(logger))
			if err != nil {
				return err
			}

			var closed *models.Session
			if force {
				closed, err = w.Close(cmd.Context())
			} else {
				closed, err = w.Tick(cmd.Context())
			}
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(closed)
			}
			console := logging.NewConsole(cmd.OutOrStdout())
			if closed == nil {
				console.Warn(fmt.Sprintf("No finished session in %s", project.Name))
				return nil
			}
			console.Success(fmt.Sprintf("Snapshotted session %s", closed.ID))
			console.Field("commit", closed.Hash)
			console.Field("duration", closed.Meta.Last().Sub(closed.Meta.Start()).Round(time.Second))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Snapshot the open session even if it is still active")
	return cmd
}
