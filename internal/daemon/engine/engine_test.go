package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []store.Update
}

func (r *recorder) Apply(u store.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, u)
}

func (r *recorder) types() []store.UpdateType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.UpdateType
	for _, u := range r.got {
		out = append(out, u.Type)
	}
	return out
}

type tickCollector struct{}

func (tickCollector) Name() string { return "tick" }

func (tickCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	select {
	case updates <- store.Update{Type: store.UpdateSweep, Source: "tick"}:
	case <-ctx.Done():
	}
	<-ctx.Done()
	return nil
}

func newEngine() *Engine {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(store.New(), logrus.NewEntry(l))
}

func TestEngineAppliesCollectorAndWorkerUpdates(t *testing.T) {
	e := newEngine()
	rec := &recorder{}
	e.Handle(rec)
	e.Register(tickCollector{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		e.Start(ctx)
		close(stopped)
	}()

	e.Dispatch("read", func() store.Update {
		return store.Update{Type: store.UpdateStateLoaded}
	})

	require.Eventually(t, func() bool { return len(rec.types()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []store.UpdateType{store.UpdateSweep, store.UpdateStateLoaded}, rec.types())

	for _, u := range rec.got {
		if u.Type == store.UpdateStateLoaded {
			assert.Equal(t, "read", u.Source, "worker results are tagged with the job name")
		}
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestPostAfterStopReturnsFalse(t *testing.T) {
	e := newEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Start(ctx)

	// Fill the buffer so only the stopped signal can unblock Post.
	for i := 0; i < cap(e.updates); i++ {
		e.updates <- store.Update{}
	}
	assert.False(t, e.Post(store.Update{Type: store.UpdateSweep}))
}

func TestPanickingJobPostsNothing(t *testing.T) {
	e := newEngine()
	rec := &recorder{}
	e.Handle(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Start(ctx)

	e.Dispatch("remove", func() store.Update {
		panic("disk gone")
	})
	e.Dispatch("read", func() store.Update {
		return store.Update{Type: store.UpdateStateLoaded}
	})

	require.Eventually(t, func() bool { return len(rec.types()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []store.UpdateType{store.UpdateStateLoaded}, rec.types())
	assert.True(t, e.Post(store.Update{Type: store.UpdateSweep}))
}
