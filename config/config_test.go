package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/gitbutler/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Second, cfg.Watcher.TickDuration())
	assert.Equal(t, 5*time.Minute, cfg.Watcher.IdleDuration())
	assert.Equal(t, time.Hour, cfg.Watcher.MaxAgeDuration())
	assert.Equal(t, int64(100_000_000), cfg.Watcher.LargeFileThreshold)
	assert.Equal(t, DigestLower, cfg.Watcher.DigestCase)
	assert.Equal(t, "refs/gitbutler/current", cfg.Storage.HistoryRef)
	assert.Equal(t, "gitbutler check", cfg.Storage.CommitMessage)
	assert.Equal(t, "gb/session", cfg.Storage.SessionDir)
	assert.Equal(t, "lfs/objects", cfg.Storage.LFSDir)
	assert.Equal(t, "logs/HEAD", cfg.Storage.Reflog)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromBytesYAML(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
watcher:
  tick_interval: 2s
  idle_timeout: 30s
  large_file_threshold: 1024
  exclude:
    - "*.log"
storage:
  commit_message: snapshot
`), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Watcher.TickDuration())
	assert.Equal(t, 30*time.Second, cfg.Watcher.IdleDuration())
	assert.Equal(t, time.Hour, cfg.Watcher.MaxAgeDuration())
	assert.Equal(t, int64(1024), cfg.Watcher.LargeFileThreshold)
	assert.Equal(t, []string{"*.log"}, cfg.Watcher.Exclude)
	assert.Equal(t, "snapshot", cfg.Storage.CommitMessage)
	assert.Equal(t, DefaultHistoryRef, cfg.Storage.HistoryRef)
}

func TestLoadFromBytesTOML(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version = "1.0"

[watcher]
max_session_age = "2h"
digest_case = "upper"

[logging]
level = "debug"
`), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Watcher.MaxAgeDuration())
	assert.Equal(t, DigestUpper, cfg.Watcher.DigestCase)

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
}

func TestExtensions(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
monitoring:
  enabled: true
  interval: "30"
`), FormatYAML)
	require.NoError(t, err)
	require.Contains(t, cfg.Extensions, "monitoring")

	var mon struct {
		Enabled  bool `yaml:"enabled"`
		Interval int  `yaml:"interval"`
	}
	require.NoError(t, cfg.UnmarshalExtension("monitoring", &mon))
	assert.True(t, mon.Enabled)
	assert.Equal(t, 30, mon.Interval)

	var missing struct {
		Value string `yaml:"value"`
	}
	require.NoError(t, cfg.UnmarshalExtension("absent", &missing))
	assert.Empty(t, missing.Value)
}

func TestLoadFromBytesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad digest case", "watcher:\n  digest_case: mixed\n"},
		{"bad duration", "watcher:\n  idle_timeout: soon\n"},
		{"negative threshold", "watcher:\n  large_file_threshold: -1\n"},
		{"ref outside refs", "storage:\n  history_ref: gitbutler/current\n"},
		{"escaping session dir", "storage:\n  session_dir: ../elsewhere\n"},
		{"not yaml", "watcher: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.content), FormatYAML)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid), "got %v", err)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("GITBUTLER_TEST_MSG", "from env")

	cfg, err := LoadFromBytes([]byte(`
storage:
  commit_message: "${GITBUTLER_TEST_MSG}"
  history_ref: "${GITBUTLER_TEST_UNSET:-refs/gitbutler/other}"
`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "from env", cfg.Storage.CommitMessage)
	assert.Equal(t, "refs/gitbutler/other", cfg.Storage.HistoryRef)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "gitbutler.yml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetCode(err))
}

func TestLoadFromWithLogger(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadFromWithLogger(t.TempDir(), quietLogger())
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("override is merged", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gitbutler.yml"), []byte(`
watcher:
  idle_timeout: 1m
  exclude: ["build/"]
`), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gitbutler.override.yml"), []byte(`
watcher:
  idle_timeout: 2m
  exclude: ["dist/"]
`), 0o644))

		cfg, err := LoadFromWithLogger(dir, quietLogger())
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.Watcher.IdleDuration())
		assert.Equal(t, []string{"build/", "dist/"}, cfg.Watcher.Exclude)
	})

	t.Run("toml file is found", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gitbutler.toml"), []byte("[watcher]\ntick_interval = \"1s\"\n"), 0o644))

		cfg, err := LoadFromWithLogger(dir, quietLogger())
		require.NoError(t, err)
		assert.Equal(t, time.Second, cfg.Watcher.TickDuration())
	})
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), "tick_interval")
	assert.Contains(t, string(data), "large_file_threshold")
	assert.NotContains(t, string(data), "Extensions")
}
