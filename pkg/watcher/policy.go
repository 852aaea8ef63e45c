package watcher

import (
	"time"

	"github.com/grovetools/gitbutler/pkg/models"
)

// Policy decides when an open session is over.
type Policy struct {
	// IdleTimeout closes a session whose last activity is older than this.
	IdleTimeout time.Duration
	// MaxAge closes a session that started longer ago than this.
	MaxAge time.Duration
}

// DefaultPolicy closes after five idle minutes or one hour overall.
func DefaultPolicy() Policy {
	return Policy{IdleTimeout: 5 * time.Minute, MaxAge: time.Hour}
}

// ShouldClose reports whether the session described by meta is over at now.
// Both limits are exclusive and compared in whole seconds: a session idle for
// exactly IdleTimeout stays open. A clock that moved backwards yields
// negative elapsed times, which never close a session.
func (p Policy) ShouldClose(meta models.SessionMeta, now time.Time) bool {
	elapsedLast, elapsedStart := Elapsed(meta, now)
	return elapsedLast > seconds(p.IdleTimeout) || elapsedStart > seconds(p.MaxAge)
}

// Elapsed returns the seconds since last activity and since start.
func Elapsed(meta models.SessionMeta, now time.Time) (sinceLast, sinceStart int64) {
	return now.Unix() - meta.LastTS, now.Unix() - meta.StartTS
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
