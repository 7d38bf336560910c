package collector

import (
	"context"
	"time"

	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/grovetools/agentwatch/pkg/process"
	"github.com/sirupsen/logrus"
)

// ProcessCollector polls for running agent processes.
type ProcessCollector struct {
	discoverer process.Discoverer
	interval   time.Duration
	logger     *logrus.Entry
}

// NewProcessCollector creates a ProcessCollector polling every interval.
func NewProcessCollector(d process.Discoverer, interval time.Duration, logger *logrus.Entry) *ProcessCollector {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &ProcessCollector{discoverer: d, interval: interval, logger: logger}
}

// Name returns the collector's name.
func (c *ProcessCollector) Name() string { return "process" }

// Run starts the discovery loop.
func (c *ProcessCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	scan := func() {
		procs, err := c.discoverer.Discover(ctx)
		if err != nil {
			c.logger.WithError(err).Debug("Process discovery failed")
			return
		}
		send(ctx, updates, store.Update{Type: store.UpdateProcesses, Source: c.Name(), Payload: procs})
	}

	scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}
