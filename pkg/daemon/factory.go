package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/pkg/paths"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/grovetools/gitbutler/util/pathutil"
)

// New returns a Client that will use the daemon if available,
// otherwise falls back to LocalClient.
//
// This implements the "transparent daemon" pattern: callers don't need
// to know whether the daemon is running or not. The same API works
// in both modes.
func New(cfg *config.Config) Client {
	socketPath := SocketPath(cfg)
	if Reachable(socketPath) {
		return NewRemoteClient(socketPath)
	}

	// Fallback: daemon not running, use local client
	return NewLocalClient(projects.Default(), cfg)
}

// SocketPath returns the socket configured in cfg, or the default one.
func SocketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Daemon.Socket != "" {
		if expanded, err := pathutil.Expand(cfg.Daemon.Socket); err == nil {
			return expanded
		}
		return cfg.Daemon.Socket
	}
	return paths.SocketPath()
}

// Reachable reports whether something accepts connections on socketPath.
func Reachable(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
