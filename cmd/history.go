package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/spf13/cobra"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the `history` command.
func NewHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "List the snapshotted sessions of a project",
		Long: `Lists the sessions recorded on the history reference of the repository
containing path (default: the current directory), newest first.`,
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
			project, err := resolveProject(projects.Default(), path)
			if err != nil {
				return err
			}

			list, err := daemon.ReadHistory(project.Path, cfg, limit)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			if len(list) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No sessions recorded on %s\n", cfg.Storage.HistoryRef)
				return nil
			}

			table := cli.NewTable(cmd.OutOrStdout(), []string{"COMMIT", "SESSION", "START", "DURATION", "BRANCH", "ACTIVITY"})
			for _, s := range list {
				commit := s.Hash
				if len(commit) > 10 {
					commit = commit[:10]
				}
				_ = table.Append([]string{
					commit,
					s.ID,
					s.Meta.Start().Local().Format(historyTimeFormat),
					s.Meta.Last().Sub(s.Meta.Start()).Round(time.Second).String(),
					s.Meta.Branch,
					fmt.Sprintf("%d", len(s.Activity)),
				})
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", daemon.DefaultHistoryLimit, "Maximum number of sessions (0 for all)")
	return cmd
}
