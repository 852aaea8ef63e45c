package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	maxWidth = 60
	minWidth = 40
)

var exampleMarkers = []string{"\nExamples:\n", "\nExample:\n"}

// terminalWidth returns the width of stdout capped at maxWidth.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth || width > maxWidth {
		return maxWidth
	}
	return width
}

// wrapText wraps text at word boundaries, keeping existing line breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		width = maxWidth
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			lines = append(lines, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// SetStyledHelp applies the gitbutler help layout to cmd.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive applies styled help to cmd and all subcommands.
// Usage output is suppressed; errors are reported by Execute.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// PrintError prints a styled error message to stderr with a help hint.
func PrintError(cmd *cobra.Command, err error) {
	p := DefaultPalette
	red := lipgloss.NewStyle().Bold(true).Foreground(p.Red)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", red.Render("Error:"), err.Error())
	fmt.Fprintln(cmd.ErrOrStderr(), p.Muted.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
}

// splitExamples separates the examples block from a long description.
func splitExamples(long string) (description, examples string) {
	for _, marker := range exampleMarkers {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

// parseChoices splits "Label: a, b, or c" into the label and its choices.
// Usages with fewer than three comma-separated values are left whole.
func parseChoices(usage string) (string, []string) {
	colon := strings.Index(usage, ": ")
	if colon == -1 {
		return usage, nil
	}
	list := usage[colon+2:]
	suffix := ""
	if end := strings.Index(list, " ("); end != -1 {
		list, suffix = list[:end], list[end:]
	}

	parts := strings.Split(list, ", ")
	if len(parts) < 3 {
		return usage, nil
	}
	for i, part := range parts {
		parts[i] = strings.TrimSpace(strings.TrimPrefix(part, "or "))
	}
	return usage[:colon+1] + suffix, parts
}

func plain(s ...string) string { return strings.Join(s, " ") }

func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}

type helpWriter struct {
	w       io.Writer
	p       *Palette
	width   int
	section lipgloss.Style
}

func (h *helpWriter) heading(name string) {
	fmt.Fprintln(h.w, "\n "+h.section.Render(name))
}

func (h *helpWriter) paragraph(text string, style func(...string) string) {
	for _, line := range strings.Split(wrapText(text, h.width), "\n") {
		fmt.Fprintln(h.w, " "+style(line))
	}
}

func (h *helpWriter) commands(cmd *cobra.Command) {
	name := lipgloss.NewStyle().Bold(true).Foreground(h.p.Blue)
	widest := 0
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() && len(sub.Name()) > widest {
			widest = len(sub.Name())
		}
	}
	h.heading("COMMANDS")
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		pad := strings.Repeat(" ", widest-len(sub.Name()))
		fmt.Fprintf(h.w, " %s%s  %s\n", name.Render(sub.Name()), pad, sub.Short)
	}
}

func (h *helpWriter) flags(cmd *cobra.Command) {
	var visible []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			visible = append(visible, f)
		}
	})
	if len(visible) == 0 {
		return
	}

	// Parent commands list their flags on one line
	if cmd.HasAvailableSubCommands() {
		names := make([]string, 0, len(visible))
		for _, f := range visible {
			names = append(names, strings.TrimSpace(flagName(f)))
		}
		fmt.Fprintln(h.w, "\n "+h.p.Muted.Render("Flags: "+strings.Join(names, ", ")))
		return
	}

	flagStyle := lipgloss.NewStyle().Foreground(h.p.Violet)
	widest := 0
	for _, f := range visible {
		if n := len(flagName(f)); n > widest {
			widest = n
		}
	}
	h.heading("FLAGS")
	for _, f := range visible {
		name := flagName(f)
		usage, choices := parseChoices(f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
			usage += h.p.Muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
		}
		fmt.Fprintf(h.w, " %s%s  %s\n", flagStyle.Render(name), strings.Repeat(" ", widest-len(name)), usage)
		for _, choice := range choices {
			fmt.Fprintf(h.w, " %s  %s\n", strings.Repeat(" ", widest+3), h.p.Muted.Render("• "+choice))
		}
	}
}

// examples renders comment lines muted and highlights the root command,
// the subcommand and flags of command lines.
func (h *helpWriter) examples(text, rootName string) {
	root := lipgloss.NewStyle().Foreground(h.p.Cyan)
	sub := lipgloss.NewStyle().Foreground(h.p.Blue)
	flag := lipgloss.NewStyle().Foreground(h.p.Violet)

	h.heading("EXAMPLES")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			fmt.Fprintln(h.w)
		case strings.HasPrefix(line, "#"):
			fmt.Fprintln(h.w, " "+h.p.Muted.Render(line))
		default:
			words := strings.Fields(line)
			for i, word := range words {
				switch {
				case i == 0 && word == rootName:
					words[i] = root.Render(word)
				case strings.HasPrefix(word, "-"):
					words[i] = flag.Render(word)
				case i == 1:
					words[i] = sub.Render(word)
				}
			}
			fmt.Fprintln(h.w, "   "+strings.Join(words, " "))
		}
	}
}

func styledHelpFunc(cmd *cobra.Command, args []string) {
	p := DefaultPalette
	h := &helpWriter{
		w:       cmd.OutOrStdout(),
		p:       p,
		width:   terminalWidth() - 2,
		section: lipgloss.NewStyle().Italic(true).Foreground(p.Orange),
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(p.Orange)
	fmt.Fprintln(h.w, " "+title.Render(strings.ToUpper(cmd.CommandPath())))

	description, examples := splitExamples(cmd.Long)
	if cmd.Short != "" {
		h.paragraph(cmd.Short, p.Italic.Render)
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(h.w)
		h.paragraph(description, plain)
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		h.heading("USAGE")
		if cmd.Runnable() {
			fmt.Fprintf(h.w, " %s\n", cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			fmt.Fprintf(h.w, " %s [command]\n", cmd.CommandPath())
		}
	}

	if cmd.HasAvailableSubCommands() {
		h.commands(cmd)
	}
	h.flags(cmd)

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		h.examples(examples, cmd.Root().Name())
	}

	if cmd.HasSubCommands() {
		fmt.Fprintf(h.w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}
