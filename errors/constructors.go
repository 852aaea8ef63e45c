package errors

import (
	"fmt"
)

// StoreFailed creates an object store error for the named operation
func StoreFailed(op string, err error) *Error {
	return Wrap(err, ErrCodeStore, fmt.Sprintf("object store %s failed", op)).
		WithDetail("op", op)
}

// FilesystemFailed creates a filesystem error for the named operation and path
func FilesystemFailed(op, path string, err error) *Error {
	return Wrap(err, ErrCodeFilesystem, fmt.Sprintf("%s %s", op, path)).
		WithDetail("op", op).
		WithDetail("path", path)
}

// IgnoreEvalFailed creates an ignore-rule evaluation error
func IgnoreEvalFailed(path string, err error) *Error {
	return Wrap(err, ErrCodeIgnoreEval, fmt.Sprintf("evaluate ignore rules for %s", path)).
		WithDetail("path", path)
}

// NotifyFailed creates a notification delivery error
func NotifyFailed(channel string, err error) *Error {
	return Wrap(err, ErrCodeNotifyFailed, fmt.Sprintf("deliver notification on %s", channel)).
		WithDetail("channel", channel)
}

// NotARepository creates an error for a path that has no git repository
func NotARepository(path string, err error) *Error {
	return Wrap(err, ErrCodeNotARepository, fmt.Sprintf("not a git repository: %s", path)).
		WithDetail("path", path)
}

// ProjectNotFound creates an unknown project error
func ProjectNotFound(id string) *Error {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project '%s' not found", id)).
		WithDetail("project", id)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// DaemonUnavailable creates an error for a daemon that cannot be reached
func DaemonUnavailable(socket string, err error) *Error {
	return Wrap(err, ErrCodeDaemonUnavailable, "daemon is not running").
		WithDetail("socket", socket)
}
