// Package pidfile guards gitbutlerd against running twice.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/grovetools/gitbutler/errors"
)

// Acquire records the current process in path. A file naming a live
// process other than this one fails with ALREADY_RUNNING; a stale file is
// replaced.
func Acquire(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FilesystemFailed("create pid directory", dir, err)
	}

	self := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", self)
			cerr := f.Close()
			if werr == nil {
				werr = cerr
			}
			if werr != nil {
				return errors.FilesystemFailed("write pid file", path, werr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return errors.FilesystemFailed("create pid file", path, err)
		}

		owner, rerr := Read(path)
		if rerr == nil && owner == self {
			return nil
		}
		if rerr == nil && alive(owner) {
			return errors.New(errors.ErrCodeAlreadyRunning, "daemon already running").
				WithDetail("pid", owner)
		}
		// Unreadable or dead owner
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.FilesystemFailed("remove stale pid file", path, err)
		}
	}
	return errors.New(errors.ErrCodeAlreadyRunning, "pid file is being claimed concurrently").
		WithDetail("path", path)
}

// Release removes the pid file.
func Release(path string) error {
	return os.Remove(path)
}

// Read parses the pid stored in path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsRunning reports whether the process named by path is alive. A missing
// file means not running.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	switch {
	case os.IsNotExist(err):
		return false, 0, nil
	case err != nil:
		return false, 0, err
	}
	return alive(pid), pid, nil
}

// alive sends signal 0; EPERM still means the process exists.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
