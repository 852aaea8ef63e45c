// Package store provides the in-memory state store for the gitbutler daemon.
package store

import (
	"time"

	"github.com/grovetools/gitbutler/pkg/models"
)

// State represents the complete world view of the daemon.
type State struct {
	Projects map[string]models.Project    `json:"projects"` // Keyed by ID
	Sessions map[string][]*models.Session `json:"sessions"` // Recently closed, newest first, keyed by project ID
	Failures map[string]*Failure          `json:"failures"` // Last failed check, keyed by project ID
}

// Failure records a failed check of a project.
type Failure struct {
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateProjects      UpdateType = "projects"
	UpdateSessionClosed UpdateType = "session_closed"
	UpdateTickFailed    UpdateType = "tick_failed"
)

// Update represents a change to the state.
type Update struct {
	Type      UpdateType
	ProjectID string
	Channel   string
	At        time.Time
	Payload   interface{}
}

// Event converts u to its public form. Updates that are not published
// yield nil.
func (u Update) Event() *models.Event {
	var t models.EventType
	switch u.Type {
	case UpdateProjects:
		t = models.EventProjectsChanged
	case UpdateSessionClosed:
		t = models.EventSessionClosed
	case UpdateTickFailed:
		t = models.EventTickFailed
	default:
		return nil
	}
	return &models.Event{
		Type:      t,
		Channel:   u.Channel,
		ProjectID: u.ProjectID,
		Timestamp: u.At,
		Payload:   u.Payload,
	}
}
