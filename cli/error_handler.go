package cli

import (
	"fmt"

	"github.com/grovetools/gitbutler/errors"
	"github.com/spf13/cobra"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Hint returns advice for an error, or "" when there is none.
func Hint(err error) string {
	e, _ := err.(*errors.Error)
	detail := func(key string) interface{} {
		if e == nil {
			return nil
		}
		return e.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		return "Create gitbutler.yml in the config directory, or pass --config."
	case errors.ErrCodeConfigInvalid:
		return "Compare the file with 'gitbutler config schema'."
	case errors.ErrCodeNotARepository:
		return fmt.Sprintf("%v is not the root of a git working tree. Run 'git init' there first.", detail("path"))
	case errors.ErrCodeProjectNotFound:
		return "Run 'gitbutler projects ls' to see registered projects."
	case errors.ErrCodeAlreadyRunning:
		return fmt.Sprintf("Stop it with 'gitbutler daemon stop' (pid %v).", detail("pid"))
	case errors.ErrCodeDaemonUnavailable:
		return "Start it with 'gitbutler daemon start'."
	case errors.ErrCodeStore:
		return "The repository object store rejected a write. Check free disk space and permissions of .git."
	case errors.ErrCodeFilesystem:
		return fmt.Sprintf("Check that %v exists and is readable.", detail("path"))
	}
	return ""
}

// Handle prints err and its hint to the command's stderr. With Verbose the
// structured error is printed as well.
func (h *ErrorHandler) Handle(cmd *cobra.Command, err error) error {
	PrintError(cmd, err)

	if hint := Hint(err); hint != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", DefaultPalette.Muted.Render(hint))
	}

	// If verbose mode, show full error details
	if h.Verbose {
		if e, ok := err.(*errors.Error); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nError details:\n%s\n", e.ToJSON())
		}
	}
	return err
}
