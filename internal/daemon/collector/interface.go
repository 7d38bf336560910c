// Package collector provides background producers that feed the consumer loop.
package collector

import (
	"context"

	"github.com/grovetools/agentwatch/internal/daemon/store"
)

// Collector is a background worker that observes something and emits updates.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// It emits updates via the updates channel.
	// It can read the published snapshot from the store (thread-safe).
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}

// send delivers u unless ctx is canceled first.
func send(ctx context.Context, updates chan<- store.Update, u store.Update) bool {
	select {
	case updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
