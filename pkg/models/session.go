package models

import (
	"time"
)

// SessionMeta holds the timestamps and context recorded for a session.
// Timestamps are epoch seconds.
type SessionMeta struct {
	StartTS int64  `json:"start_ts"`
	LastTS  int64  `json:"last_ts"`
	Branch  string `json:"branch,omitempty"`
	Commit  string `json:"commit,omitempty"`
}

// Start returns the session start as a time.
func (m SessionMeta) Start() time.Time {
	return time.Unix(m.StartTS, 0)
}

// Last returns the most recent activity as a time.
func (m SessionMeta) Last() time.Time {
	return time.Unix(m.LastTS, 0)
}

// Session is one unit of work in a project. An open session has no Hash;
// a closed one carries the id of the history commit that snapshotted it.
type Session struct {
	ID       string      `json:"id"`
	Hash     string      `json:"hash,omitempty"`
	Meta     SessionMeta `json:"meta"`
	Activity []Activity  `json:"activity"`
}

// Activity is one movement of the project's primary HEAD recorded during a
// session.
type Activity struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp_ms"`
	Message   string `json:"message"`
}
