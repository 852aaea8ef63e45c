package cli

import (
	"github.com/spf13/cobra"
)

// NewDocsCommand creates a command that prints a generated JSON document,
// such as the configuration schema.
func NewDocsCommand(use, short string, generate func() ([]byte, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := generate()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
	// The --json flag is implied since that's all this command does.
	return cmd
}
