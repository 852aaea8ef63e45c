package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Long: `Prints today's log file of a component, gitbutlerd by default.

Examples:
  # Follow the daemon log
  gitbutler logs -f

  # Get the last 100 lines
  gitbutler logs --tail 100

  # Read the log of an earlier day
  gitbutler logs --date 2026-10-15`,
		Args: cobra.NoArgs,
		RunE: runLogsE,
	}

	cmd.Flags().String("component", "gitbutlerd", "Component whose log to show")
	cmd.Flags().String("date", "", "Day of the log file (YYYY-MM-DD, default: today)")
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	component, _ := cmd.Flags().GetString("component")
	date, _ := cmd.Flags().GetString("date")
	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")

	day := time.Now()
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
		day = parsed
	}

	path := logging.FilePath(component, day)
	if _, err := os.Stat(path); err != nil && !follow {
		return fmt.Errorf("no log file for %s: %w", component, err)
	}

	offset, err := tailOffset(path, tailLines)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", path, err)
	}
	defer t.Cleanup()

	go func() {
		<-cmd.Context().Done()
		_ = t.Stop()
	}()

	jsonOutput := cli.GetOptions(cmd).JSONOutput
	out := cmd.OutOrStdout()
	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		if jsonOutput {
			printLogJSON(out, component, line.Text)
		} else {
			printLogText(out, component, line.Text)
		}
	}
	return nil
}

// tailOffset returns the byte offset of the last n lines of path. A
// negative n starts at the beginning of the file.
func tailOffset(path string, n int) (int64, error) {
	if n < 0 {
		return 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var starts []int64
	var pos int64
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			starts = append(starts, pos)
			pos += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if n == 0 {
		return pos, nil
	}
	if n >= len(starts) {
		return 0, nil
	}
	return starts[len(starts)-n], nil
}

func printLogJSON(w io.Writer, component, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		entry = map[string]interface{}{"msg": line}
	}
	if _, ok := entry["component"]; !ok {
		entry["component"] = component
	}
	data, _ := json.Marshal(entry)
	fmt.Fprintln(w, string(data))
}

func printLogText(w io.Writer, component, line string) {
	prefix := cli.DefaultPalette.Muted.Render("[" + component + "]")
	fmt.Fprintf(w, "%s %s\n", prefix, strings.TrimRight(line, "\r\n"))
}
