package daemon

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/grovetools/agentwatch/errors"
	"github.com/grovetools/agentwatch/pkg/hookregistry"
	"github.com/grovetools/agentwatch/pkg/labels"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/state"
)

// LocalClient implements Client by operating on the state and settings files
// directly. It is used when the consumer is not running.
type LocalClient struct {
	state      *state.Store
	hooks      *hookregistry.Registry
	maxTracked int
}

// NewLocalClient creates a new LocalClient.
func NewLocalClient(st *state.Store, hooks *hookregistry.Registry, maxTracked int) *LocalClient {
	return &LocalClient{state: st, hooks: hooks, maxTracked: maxTracked}
}

// Snapshot reads the state file and labels the sessions that would be tracked.
func (c *LocalClient) Snapshot(ctx context.Context) (models.Snapshot, error) {
	tracked := models.SelectTracked(c.state.Read().Sessions, c.maxTracked)
	dirs := models.Dirs(tracked)

	var registered []string
	for _, dir := range dirs {
		if c.hooks.HasRegistered(dir) {
			registered = append(registered, dir)
		}
	}
	return models.NewSnapshot(tracked, labels.Assign(dirs), registered, 0, time.Now()), nil
}

// Untrack deletes the session from the state file and, when no other tracked
// session shares its directory, removes the directory's hooks.
func (c *LocalClient) Untrack(ctx context.Context, id string) error {
	rec, ok := c.state.Read().Sessions[id]
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown session").WithDetail("session", id)
	}

	var remaining map[string]models.SessionRecord
	ok = c.state.Update(func(s *models.SharedState) bool {
		_, exists := s.Sessions[id]
		delete(s.Sessions, id)
		remaining = s.Clone().Sessions
		return exists
	})
	if !ok {
		return errors.New(errors.ErrCodeLockFailed, "could not update the state file").WithDetail("path", c.state.Path())
	}

	for _, r := range models.SelectTracked(remaining, c.maxTracked) {
		if r.ProjectDir == rec.ProjectDir {
			return nil
		}
	}
	c.hooks.Remove(rec.ProjectDir)
	return nil
}

// StreamSnapshots is not available without a running consumer.
func (c *LocalClient) StreamSnapshots(ctx context.Context) (<-chan models.Snapshot, error) {
	return nil, stderrors.New("streaming requires a running agentwatch consumer")
}

// IsRunning always reports false.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
