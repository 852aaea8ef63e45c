package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Default values for the session watcher.
const (
	DefaultTickInterval       = "10s"
	DefaultIdleTimeout        = "5m"
	DefaultMaxSessionAge      = "1h"
	DefaultLargeFileThreshold = int64(100_000_000)

	DefaultHistoryRef    = "refs/gitbutler/current"
	DefaultCommitMessage = "gitbutler check"
	DefaultSessionDir    = "gb/session"
	DefaultLFSDir        = "lfs/objects"
	DefaultReflog        = "logs/HEAD"

	DigestLower = "lower"
	DigestUpper = "upper"
)

// WatcherConfig controls when sessions are closed and how files are stored.
type WatcherConfig struct {
	TickInterval       string   `yaml:"tick_interval,omitempty" toml:"tick_interval,omitempty" jsonschema:"description=Pause between two checks of a project (default: 10s)"`
	IdleTimeout        string   `yaml:"idle_timeout,omitempty" toml:"idle_timeout,omitempty" jsonschema:"description=Close a session after this long without activity (default: 5m)"`
	MaxSessionAge      string   `yaml:"max_session_age,omitempty" toml:"max_session_age,omitempty" jsonschema:"description=Close a session once it is older than this (default: 1h)"`
	LargeFileThreshold int64    `yaml:"large_file_threshold,omitempty" toml:"large_file_threshold,omitempty" jsonschema:"description=Files larger than this many bytes are stored as pointers (default: 100000000),minimum=0"`
	Exclude            []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" jsonschema:"description=Extra exclude patterns applied on top of .gitignore"`
	DigestCase         string   `yaml:"digest_case,omitempty" toml:"digest_case,omitempty" jsonschema:"description=Hex case of large-file digests,enum=lower,enum=upper"`
}

// TickDuration returns the parsed tick interval.
func (w WatcherConfig) TickDuration() time.Duration {
	return mustDuration(w.TickInterval, DefaultTickInterval)
}

// IdleDuration returns the parsed idle timeout.
func (w WatcherConfig) IdleDuration() time.Duration {
	return mustDuration(w.IdleTimeout, DefaultIdleTimeout)
}

// MaxAgeDuration returns the parsed maximum session age.
func (w WatcherConfig) MaxAgeDuration() time.Duration {
	return mustDuration(w.MaxSessionAge, DefaultMaxSessionAge)
}

// StorageConfig names the locations used inside a repository's git directory.
type StorageConfig struct {
	HistoryRef    string `yaml:"history_ref,omitempty" toml:"history_ref,omitempty" jsonschema:"description=Reference advanced with one commit per closed session,pattern=^refs/"`
	CommitMessage string `yaml:"commit_message,omitempty" toml:"commit_message,omitempty" jsonschema:"description=Message written on history commits"`
	SessionDir    string `yaml:"session_dir,omitempty" toml:"session_dir,omitempty" jsonschema:"description=Session metadata directory relative to the git directory"`
	LFSDir        string `yaml:"lfs_dir,omitempty" toml:"lfs_dir,omitempty" jsonschema:"description=External large-file store relative to the git directory"`
	Reflog        string `yaml:"reflog,omitempty" toml:"reflog,omitempty" jsonschema:"description=Reference log snapshotted with every session"`
}

// DaemonConfig configures gitbutlerd.
type DaemonConfig struct {
	Socket             string `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=Unix socket path (default: runtime dir)"`
	RegistryDebounceMs int    `yaml:"registry_debounce_ms,omitempty" toml:"registry_debounce_ms,omitempty" jsonschema:"description=Debounce window for project registry reloads in milliseconds (default: 100),minimum=0"`
	ActivityDebounceMs int    `yaml:"activity_debounce_ms,omitempty" toml:"activity_debounce_ms,omitempty" jsonschema:"description=Debounce window for working tree activity in milliseconds (default: 500),minimum=0"`
}

// Config is the top-level gitbutler configuration.
type Config struct {
	Version string        `yaml:"version,omitempty" toml:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Watcher WatcherConfig `yaml:"watcher,omitempty" toml:"watcher,omitempty" jsonschema:"description=Session boundary and snapshot settings"`
	Storage StorageConfig `yaml:"storage,omitempty" toml:"storage,omitempty" jsonschema:"description=Repository-relative storage locations"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty" toml:"daemon,omitempty" jsonschema:"description=Daemon settings"`

	// Extensions holds any top-level section not listed above, e.g. "logging".
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	w := &c.Watcher
	if w.TickInterval == "" {
		w.TickInterval = DefaultTickInterval
	}
	if w.IdleTimeout == "" {
		w.IdleTimeout = DefaultIdleTimeout
	}
	if w.MaxSessionAge == "" {
		w.MaxSessionAge = DefaultMaxSessionAge
	}
	if w.LargeFileThreshold == 0 {
		w.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if w.DigestCase == "" {
		w.DigestCase = DigestLower
	}

	s := &c.Storage
	if s.HistoryRef == "" {
		s.HistoryRef = DefaultHistoryRef
	}
	if s.CommitMessage == "" {
		s.CommitMessage = DefaultCommitMessage
	}
	if s.SessionDir == "" {
		s.SessionDir = DefaultSessionDir
	}
	if s.LFSDir == "" {
		s.LFSDir = DefaultLFSDir
	}
	if s.Reflog == "" {
		s.Reflog = DefaultReflog
	}

	if c.Daemon.RegistryDebounceMs == 0 {
		c.Daemon.RegistryDebounceMs = 100
	}
	if c.Daemon.ActivityDebounceMs == 0 {
		c.Daemon.ActivityDebounceMs = 500
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded file into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing section leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

func mustDuration(value, fallback string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
