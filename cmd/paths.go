package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/gitbutler/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput represents the XDG-compliant paths used by gitbutler.
type PathsOutput struct {
	ConfigDir    string `json:"config_dir"`
	StateDir     string `json:"state_dir"`
	LogDir       string `json:"log_dir"`
	RuntimeDir   string `json:"runtime_dir"`
	ProjectsFile string `json:"projects_file"`
	Socket       string `json:"socket"`
	PidFile      string `json:"pid_file"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by gitbutler",
		Long: `Print the XDG-compliant paths used by gitbutler.

This command outputs the paths in JSON format, making it easy
to parse from scripts and other tools.

- config_dir: Configuration files (gitbutler.yml, projects.yml)
- state_dir: Daemon state (pid file, logs)
- runtime_dir: The daemon socket
Setting GITBUTLER_HOME places all of them under one directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir:    paths.ConfigDir(),
				StateDir:     paths.StateDir(),
				LogDir:       paths.LogDir(),
				RuntimeDir:   paths.RuntimeDir(),
				ProjectsFile: paths.ProjectsFile(),
				Socket:       paths.SocketPath(),
				PidFile:      paths.PidFilePath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
			return nil
		},
	}

	return cmd
}
