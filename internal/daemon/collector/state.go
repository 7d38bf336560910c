package collector

import (
	"context"

	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/grovetools/agentwatch/pkg/watcher"
	"github.com/sirupsen/logrus"
)

// StateCollector turns state file notifications into UpdateStateChanged.
type StateCollector struct {
	path   string
	opts   watcher.Options
	logger *logrus.Entry
}

// NewStateCollector creates a StateCollector for the state file at path.
func NewStateCollector(path string, opts watcher.Options, logger *logrus.Entry) *StateCollector {
	return &StateCollector{path: path, opts: opts, logger: logger}
}

// Name returns the collector's name.
func (c *StateCollector) Name() string { return "state" }

// Run watches the state file until ctx is canceled or the watcher gives up.
func (c *StateCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	w := watcher.New(c.path, c.opts, c.logger)
	err := w.Run(ctx, func(ch watcher.Change) {
		c.logger.WithField("kind", ch.Kind).Debug("State file changed")
		send(ctx, updates, store.Update{Type: store.UpdateStateChanged, Source: c.Name(), Payload: ch})
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
