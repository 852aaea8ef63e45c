package cli

import "github.com/charmbracelet/lipgloss"

// Palette holds the colors and text styles of command help and errors.
type Palette struct {
	Blue   lipgloss.Color
	Cyan   lipgloss.Color
	Violet lipgloss.Color
	Orange lipgloss.Color
	Red    lipgloss.Color
	Green  lipgloss.Color

	Muted  lipgloss.Style
	Italic lipgloss.Style
}

// DefaultPalette uses ANSI colors so it follows the terminal theme.
var DefaultPalette = &Palette{
	Blue:   lipgloss.Color("12"),
	Cyan:   lipgloss.Color("14"),
	Violet: lipgloss.Color("13"),
	Orange: lipgloss.Color("208"),
	Red:    lipgloss.Color("9"),
	Green:  lipgloss.Color("10"),

	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Italic: lipgloss.NewStyle().Italic(true),
}
