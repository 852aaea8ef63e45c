package watcher

import (
	"testing"
	"time"

	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestShouldClose(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	p := DefaultPolicy()

	tests := []struct {
		name      string
		sinceLast int64
		sinceStrt int64
		want      bool
	}{
		{"fresh", 10, 10, false},
		{"idle exactly five minutes", 300, 300, false},
		{"idle just over five minutes", 301, 301, true},
		{"one hour exactly", 10, 3600, false},
		{"just over one hour", 10, 3601, true},
		{"long running and active", 5, 4000, true},
		{"clock moved backwards", -50, -50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := models.SessionMeta{
				StartTS: now.Unix() - tt.sinceStrt,
				LastTS:  now.Unix() - tt.sinceLast,
			}
			assert.Equal(t, tt.want, p.ShouldClose(meta, now))
		})
	}
}

func TestShouldCloseCustomLimits(t *testing.T) {
	p := Policy{IdleTimeout: 30 * time.Second, MaxAge: 2 * time.Minute}
	now := time.Unix(500, 0)

	assert.False(t, p.ShouldClose(models.SessionMeta{StartTS: 470, LastTS: 470}, now))
	assert.True(t, p.ShouldClose(models.SessionMeta{StartTS: 469, LastTS: 469}, now))
	assert.True(t, p.ShouldClose(models.SessionMeta{StartTS: 379, LastTS: 499}, now))
}
