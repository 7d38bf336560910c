// Package daemon provides a client for the agentwatch consumer.
// It implements a transparent fallback pattern: if the consumer is running,
// talk to it over its socket; if not, operate on the shared files directly.
package daemon

import (
	"context"

	"github.com/grovetools/agentwatch/pkg/models"
)

// Client defines the interface for interacting with the consumer.
// Both RemoteClient (socket) and LocalClient (direct file access) implement it.
type Client interface {
	// Snapshot returns the tracked sessions and registered directories.
	Snapshot(ctx context.Context) (models.Snapshot, error)

	// Untrack deletes a session and removes its directory's hooks once no
	// other tracked session uses that directory.
	Untrack(ctx context.Context, id string) error

	// StreamSnapshots subscribes to snapshots published by the consumer.
	// LocalClient returns an error since streaming needs a running consumer.
	StreamSnapshots(ctx context.Context) (<-chan models.Snapshot, error)

	// IsRunning returns true if the consumer is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
