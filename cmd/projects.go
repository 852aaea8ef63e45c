package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/logging"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/spf13/cobra"
)

// NewProjectsCmd returns the projects command with subcommands.
func NewProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage watched projects",
		Long: `Register and unregister the repositories the daemon watches.
A running daemon picks up changes to the registry on its own.

Examples:
  # Watch the repository in the current directory
  gitbutler projects add .

  # List projects with their watch status
  gitbutler projects ls`,
	}

	cmd.AddCommand(newProjectsAddCmd())
	cmd.AddCommand(newProjectsRemoveCmd())
	cmd.AddCommand(newProjectsListCmd())

	return cmd
}

func newProjectsAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := projects.Default().Add(args[0], name)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(p)
			}
			console := logging.NewConsole(cmd.OutOrStdout())
			console.Success(fmt.Sprintf("Registered %s", p.Name))
			console.Field("id", p.ID)
			console.Path("path", p.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: repository name)")
	return cmd
}

func newProjectsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Unregister a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := projects.Default().Remove(args[0]); err != nil {
				return err
			}
			logging.NewConsole(cmd.OutOrStdout()).Success(fmt.Sprintf("Removed %s", args[0]))
			return nil
		},
	}
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List registered projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg)
			defer client.Close()

			list, err := client.GetProjects(cmd.Context())
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects registered. Add one with 'gitbutler projects add <path>'.")
				return nil
			}

			table := cli.NewTable(cmd.OutOrStdout(), []string{"ID", "NAME", "PATH", "WATCHING", "LAST ERROR"})
			for _, p := range list {
				watching := "no"
				if p.Watching {
					watching = "yes"
				}
				_ = table.Append([]string{p.ID, p.Name, p.Path, watching, p.LastError})
			}
			return table.Render()
		},
	}
}
