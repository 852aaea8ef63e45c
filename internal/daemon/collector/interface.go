// Package collector provides background workers that fetch and update daemon state.
package collector

import (
	"context"

	"github.com/grovetools/gitbutler/internal/daemon/store"
)

// Collector is a background worker that fetches data and emits updates.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// It emits updates via the updates channel.
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}

// emit sends u unless ctx is canceled first.
func emit(ctx context.Context, updates chan<- store.Update, u store.Update) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}
