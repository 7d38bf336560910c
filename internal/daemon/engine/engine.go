// Package engine runs the consumer: background collectors and workers feed
// updates into one loop that applies them in order.
package engine

import (
	"context"

	"github.com/grovetools/agentwatch/internal/daemon/collector"
	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/grovetools/agentwatch/pkg/profiling"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// Handler applies updates. It is only ever called from the engine's loop.
type Handler interface {
	Apply(store.Update)
}

// Engine manages collectors, the worker pool and the mutation loop.
type Engine struct {
	store      *store.Store
	collectors []collector.Collector
	handler    Handler
	updates    chan store.Update
	done       chan struct{}
	workers    *pool.Pool
	logger     *logrus.Entry
}

// New creates a new Engine instance.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:   st,
		updates: make(chan store.Update, 100),
		done:    make(chan struct{}),
		workers: pool.New(),
		logger:  logger,
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Handle sets the handler for updates. Call before Start.
func (e *Engine) Handle(h Handler) {
	e.handler = h
}

// Post queues an update for the loop. It returns false once the loop has stopped.
func (e *Engine) Post(u store.Update) bool {
	select {
	case e.updates <- u:
		return true
	case <-e.done:
		return false
	}
}

// Dispatch runs job on the worker pool and posts its result to the loop.
// A job that panics posts nothing.
func (e *Engine) Dispatch(name string, job func() store.Update) {
	e.workers.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.WithFields(logrus.Fields{"job": name, "panic": r}).Error("Worker job panicked")
			}
		}()
		u := job()
		if u.Source == "" {
			u.Source = name
		}
		if !e.Post(u) {
			e.logger.WithField("job", name).Debug("Engine stopped, dropping result")
		}
	})
}

// Start runs all collectors and the loop, and blocks until ctx is canceled.
// Jobs still running on the pool are not awaited; a consent prompt can wait
// on the terminal indefinitely.
func (e *Engine) Start(ctx context.Context) {
	var wg conc.WaitGroup

	wg.Go(func() {
		defer close(e.done)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-e.updates:
				if e.handler != nil {
					span := profiling.Start("apply." + string(u.Type))
					e.handler.Apply(u)
					span.Stop()
				}
			}
		}
	})

	for _, c := range e.collectors {
		col := c
		wg.Go(func() {
			logger := e.logger.WithField("collector", col.Name())
			logger.Info("Starting collector")
			if err := col.Run(ctx, e.store, e.updates); err != nil {
				logger.WithError(err).Error("Collector failed")
			}
		})
	}

	wg.Wait()
}

// Store returns the engine's published snapshot store.
func (e *Engine) Store() *store.Store {
	return e.store
}
