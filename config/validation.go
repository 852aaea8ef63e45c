package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/gitbutler/errors"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	durations := map[string]string{
		"watcher.tick_interval":   c.Watcher.TickInterval,
		"watcher.idle_timeout":    c.Watcher.IdleTimeout,
		"watcher.max_session_age": c.Watcher.MaxSessionAge,
	}
	for field, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("%s is not a duration", field)).
				WithDetail("field", field).
				WithDetail("value", value)
		}
		if d <= 0 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be positive", field)).
				WithDetail("field", field)
		}
	}

	if c.Watcher.LargeFileThreshold < 0 {
		return errors.ConfigInvalid("watcher.large_file_threshold must not be negative")
	}

	switch c.Watcher.DigestCase {
	case DigestLower, DigestUpper:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("watcher.digest_case must be %q or %q", DigestLower, DigestUpper)).
			WithDetail("value", c.Watcher.DigestCase)
	}

	if !strings.HasPrefix(c.Storage.HistoryRef, "refs/") {
		return errors.ConfigInvalid("storage.history_ref must start with refs/").
			WithDetail("value", c.Storage.HistoryRef)
	}

	relative := map[string]string{
		"storage.session_dir": c.Storage.SessionDir,
		"storage.lfs_dir":     c.Storage.LFSDir,
		"storage.reflog":      c.Storage.Reflog,
	}
	for field, value := range relative {
		if err := validateRelative(field, value); err != nil {
			return err
		}
	}

	return nil
}

// validateRelative rejects paths that would escape the git directory
func validateRelative(field, value string) error {
	if value == "" {
		return errors.ConfigInvalid(fmt.Sprintf("%s cannot be empty", field))
	}
	if filepath.IsAbs(value) {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be relative to the git directory", field)).
			WithDetail("value", value)
	}
	clean := filepath.ToSlash(filepath.Clean(value))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.ConfigInvalid(fmt.Sprintf("%s must stay inside the git directory", field)).
			WithDetail("value", value)
	}
	return nil
}
