package models

import "time"

// EventType identifies what a daemon event describes.
type EventType string

const (
	EventSessionClosed   EventType = "session_closed"
	EventProjectsChanged EventType = "projects_changed"
	EventTickFailed      EventType = "tick_failed"
)

// Event is a message published by the daemon to stream subscribers.
type Event struct {
	Type      EventType   `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	ProjectID string      `json:"project_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}
