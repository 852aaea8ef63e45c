package cmd

import (
	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/pkg/profiling"
	"github.com/grovetools/gitbutler/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the gitbutler command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"gitbutler",
		"Record working sessions of git repositories as snapshot commits",
	)
	cli.SetVersionTemplate(root, version.GetInfo())

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(root)
	root.PersistentPreRunE = profiler.PreRun
	root.PersistentPostRunE = profiler.PostRun

	root.AddCommand(NewDaemonCmd())
	root.AddCommand(NewProjectsCmd())
	root.AddCommand(NewSnapshotCmd())
	root.AddCommand(NewHistoryCmd())
	root.AddCommand(NewEventsCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(cli.NewVersionCommand("gitbutler"))

	return root
}
