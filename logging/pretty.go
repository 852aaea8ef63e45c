package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Console prints user-facing command output. Structured logs go through
// NewLogger; Console is for what a person running the CLI reads.
type Console struct {
	writer io.Writer
	styles consoleStyles
}

type consoleStyles struct {
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	key     lipgloss.Style
	value   lipgloss.Style
	path    lipgloss.Style
}

// NewConsole returns a Console writing to w. Styling is dropped when w is
// not a terminal.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	if !isTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Console{
		writer: w,
		styles: consoleStyles{
			success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			warning: r.NewStyle().Foreground(lipgloss.Color("11")),
			err:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			key:     r.NewStyle().Foreground(lipgloss.Color("8")),
			value:   r.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
			path:    r.NewStyle().Foreground(lipgloss.Color("6")).Italic(true),
		},
	}
}

// Stderr returns a Console on os.Stderr.
func Stderr() *Console {
	return NewConsole(os.Stderr)
}

// Success prints a message with a checkmark.
func (c *Console) Success(message string) {
	fmt.Fprintf(c.writer, "%s %s\n", c.styles.success.Render("✓"), c.styles.success.Render(message))
}

// Warn prints a warning.
func (c *Console) Warn(message string) {
	fmt.Fprintf(c.writer, "%s %s\n", c.styles.warning.Render("⚠"), c.styles.warning.Render(message))
}

// Error prints message and, if set, err.
func (c *Console) Error(message string, err error) {
	fmt.Fprintf(c.writer, "%s %s", c.styles.err.Render("✗"), c.styles.err.Render(message))
	if err != nil {
		fmt.Fprintf(c.writer, ": %s", c.styles.err.Render(err.Error()))
	}
	fmt.Fprintln(c.writer)
}

// Field prints a key-value pair.
func (c *Console) Field(key string, value interface{}) {
	fmt.Fprintf(c.writer, "%s: %s\n", c.styles.key.Render(key), c.styles.value.Render(fmt.Sprint(value)))
}

// Path prints a labelled file path.
func (c *Console) Path(label, path string) {
	fmt.Fprintf(c.writer, "%s: %s\n", c.styles.key.Render(label), c.styles.path.Render(path))
}

// Divider prints a horizontal rule.
func (c *Console) Divider() {
	fmt.Fprintln(c.writer, c.styles.key.Render(strings.Repeat("─", 60)))
}
