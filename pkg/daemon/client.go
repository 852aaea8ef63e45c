// Package daemon provides a client interface for interacting with gitbutlerd.
// It implements a transparent fallback pattern: if the daemon is running, use
// its HTTP API; if not, fall back to reading projects and history directly.
package daemon

import (
	"context"
	"time"

	"github.com/grovetools/gitbutler/pkg/models"
)

// Client defines the interface for interacting with gitbutlerd.
// Both RemoteClient and LocalClient implement this interface.
type Client interface {
	// GetProjects returns the registered projects.
	GetProjects(ctx context.Context) ([]ProjectStatus, error)

	// GetSessions returns closed sessions, newest first. An empty
	// projectID returns those of every project.
	GetSessions(ctx context.Context, projectID string) ([]*models.Session, error)

	// StreamEvents subscribes to daemon events, optionally for one project.
	// The channel is closed when ctx is canceled or the connection is lost.
	// For LocalClient, this returns an error since streaming is only
	// available via daemon.
	StreamEvents(ctx context.Context, projectID string) (<-chan models.Event, error)

	// GetConfig returns the settings the daemon runs with.
	GetConfig(ctx context.Context) (*RunningConfig, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// ProjectStatus is a registered project and what the daemon knows of it.
type ProjectStatus struct {
	models.Project
	Watching    bool   `json:"watching"`
	LastError   string `json:"last_error,omitempty"`
	LastSession string `json:"last_session,omitempty"`
}

// RunningConfig mirrors the daemon's /api/config response.
type RunningConfig struct {
	TickInterval  string    `json:"tick_interval"`
	IdleTimeout   string    `json:"idle_timeout"`
	MaxSessionAge string    `json:"max_session_age"`
	HistoryRef    string    `json:"history_ref"`
	StartedAt     time.Time `json:"started_at"`
	PID           int       `json:"pid"`
}
