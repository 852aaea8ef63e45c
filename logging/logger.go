package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/pkg/paths"
	"github.com/grovetools/gitbutler/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := New(component, logCfg, os.Stderr)
	loggers[component] = entry
	return entry
}

// Reset drops every cached component logger.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	loggers = make(map[string]*logrus.Entry)
}

// New builds a logger for component from an explicit configuration. stderr
// receives structured output when the StructuredToStderr mode allows it.
func New(component string, logCfg Config, stderr io.Writer) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("GITBUTLER_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("GITBUTLER_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	interactive := isTerminal(stderr)
	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format, Color: interactive})
	}

	var writers []io.Writer

	if !logCfg.File.Disabled {
		logFilePath := FilePath(component, time.Now())
		if logCfg.File.Path != "" {
			if expanded, err := pathutil.Expand(logCfg.File.Path); err == nil {
				logFilePath = expanded
			}
		}
		if file, err := openLogFile(logFilePath); err == nil {
			writers = append(writers, file)
		} else if logCfg.File.Path != "" {
			// Only warn if explicitly configured
			logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
		}
	}

	stderrMode := logCfg.Format.StructuredToStderr
	if stderrMode == "" {
		stderrMode = "auto"
	}
	switch stderrMode {
	case "always":
		writers = append(writers, stderr)
	case "auto":
		// Interactive sessions only see structured logs in debug mode
		if level >= logrus.DebugLevel || !interactive {
			writers = append(writers, stderr)
		}
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// FilePath returns the default log file of component for the day of t.
func FilePath(component string, t time.Time) string {
	return filepath.Join(paths.LogDir(), fmt.Sprintf("%s-%s.log", component, t.Format("2006-01-02")))
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
