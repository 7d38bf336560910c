package collector

import (
	"context"
	"time"

	"github.com/grovetools/agentwatch/internal/daemon/store"
)

// SweepCollector emits UpdateSweep on a fixed interval.
type SweepCollector struct {
	interval time.Duration
}

// NewSweepCollector creates a SweepCollector.
func NewSweepCollector(interval time.Duration) *SweepCollector {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &SweepCollector{interval: interval}
}

// Name returns the collector's name.
func (c *SweepCollector) Name() string { return "sweep" }

// Run emits a sweep on every tick.
func (c *SweepCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			send(ctx, updates, store.Update{Type: store.UpdateSweep, Source: c.Name(), Payload: now})
		}
	}
}
