package logging

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02 15:04:05"

// TextFormatter renders entries as
// "<time> [LEVEL] [component] message key=value ...".
type TextFormatter struct {
	Config FormatConfig
	// Color enables ANSI styling of the level and component.
	Color bool

	once   sync.Once
	styles map[logrus.Level]lipgloss.Style
	accent lipgloss.Style
}

func (f *TextFormatter) initStyles() {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	if f.Color {
		r.SetColorProfile(termenv.ANSI256)
	}
	level := func(c string) lipgloss.Style { return r.NewStyle().Foreground(lipgloss.Color(c)) }
	f.styles = map[logrus.Level]lipgloss.Style{
		logrus.PanicLevel: level("9").Bold(true),
		logrus.FatalLevel: level("9").Bold(true),
		logrus.ErrorLevel: level("9"),
		logrus.WarnLevel:  level("11"),
		logrus.InfoLevel:  level("12"),
		logrus.DebugLevel: level("8"),
		logrus.TraceLevel: level("8"),
	}
	f.accent = r.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
}

func levelName(l logrus.Level) string {
	if l == logrus.WarnLevel {
		return "WARN"
	}
	return strings.ToUpper(l.String())
}

// Format implements logrus.Formatter.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	f.once.Do(f.initStyles)

	var b bytes.Buffer
	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format(timestampLayout))
		b.WriteByte(' ')
	}
	b.WriteString(f.styles[entry.Level].Render("[" + levelName(entry.Level) + "]"))

	if c, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		fmt.Fprintf(&b, " [%s]", f.accent.Render(fmt.Sprint(c)))
	}
	if entry.HasCaller() {
		fmt.Fprintf(&b, " [%s:%d %s]",
			filepath.Base(entry.Caller.File), entry.Caller.Line, filepath.Base(entry.Caller.Function))
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fieldValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// fieldValue quotes values that would otherwise break key=value parsing.
func fieldValue(v interface{}) string {
	var s string
	if err, ok := v.(error); ok {
		s = err.Error()
	} else {
		s = fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
