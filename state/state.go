// Package state owns the shared session state file.
//
// Any number of short-lived writer processes and one long-lived consumer share
// the file. Every mutation is a locked read-modify-write cycle, and every
// replace goes through a temporary file and a rename so readers never observe
// a partial document.
package state

import (
	"encoding/json"
	"io"
	"os"

	"github.com/grovetools/agentwatch/errors"
	"github.com/grovetools/agentwatch/pkg/dirlock"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/util/fsutil"
	"github.com/sirupsen/logrus"
)

const filePerm = 0644

// Store reads and writes the state file at a fixed path.
type Store struct {
	path   string
	lock   dirlock.Options
	logger *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLockOptions overrides the lock retry schedule.
func WithLockOptions(opts dirlock.Options) Option {
	return func(s *Store) { s.lock = opts }
}

// WithLogger sets the logger used for recovery and contention warnings.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) { s.logger = logger }
}

// New returns a store for the state file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		lock: dirlock.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.logger = logrus.NewEntry(discard)
	}
	if s.lock.Logger == nil {
		s.lock.Logger = s.logger
	}
	return s
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Marshal encodes state in its on-disk form. Map keys and struct fields are
// emitted in sorted order, so equal states always encode to identical bytes.
func Marshal(state models.SharedState) ([]byte, error) {
	if state.Sessions == nil {
		state = models.NewSharedState()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads the state file without any recovery. A missing file is an empty
// state; unparseable content yields an ErrCodeStateCorrupt error.
func (s *Store) Load() (models.SharedState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewSharedState(), nil
		}
		return models.NewSharedState(), errors.Wrap(err, errors.ErrCodeInternal, "failed to read state file").
			WithDetail("path", s.path)
	}
	return decode(s.path, data)
}

// Read returns the current state and never fails.
//
// Corrupt content is replaced with an empty state. The corruption is
// confirmed again under the lock first, so a healthy document written
// concurrently is never clobbered. If the lock is busy the empty state is
// returned and the file is left for the next reader to repair.
func (s *Store) Read() models.SharedState {
	state, err := s.Load()
	if err == nil {
		return state
	}
	if !errors.Is(err, errors.ErrCodeStateCorrupt) {
		s.logger.WithError(err).Warn("Failed to read state file")
		return models.NewSharedState()
	}

	s.logger.WithError(err).WithField("path", s.path).Warn("State file is corrupt, resetting to empty state")

	var recovered models.SharedState
	lockErr := dirlock.With(s.path, s.lock, func() error {
		current, err := s.Load()
		if err == nil {
			// Repaired by someone else in the meantime.
			recovered = current
			return nil
		}
		recovered = models.NewSharedState()
		if !errors.Is(err, errors.ErrCodeStateCorrupt) {
			return err
		}
		return s.replace(recovered)
	})
	if lockErr != nil {
		s.logger.WithError(lockErr).Warn("Could not reset corrupt state file")
		return models.NewSharedState()
	}
	return recovered
}

// Write replaces the whole state under the lock. It reports false when the
// lock is held by a live process or the file cannot be written.
func (s *Store) Write(state models.SharedState) bool {
	err := dirlock.With(s.path, s.lock, func() error {
		return s.replace(state)
	})
	if err != nil {
		s.logFailure(err, "write")
		return false
	}
	return true
}

// Update runs a locked read-modify-write cycle. fn receives the current state
// (empty if the file is missing or corrupt) and returns whether it changed
// anything; the file is only rewritten when it did. Update reports false when
// the lock could not be taken or the write failed.
func (s *Store) Update(fn func(*models.SharedState) bool) bool {
	err := dirlock.With(s.path, s.lock, func() error {
		current, err := s.Load()
		if err != nil {
			if !errors.Is(err, errors.ErrCodeStateCorrupt) {
				return err
			}
			s.logger.WithError(err).Warn("Overwriting corrupt state file")
			current = models.NewSharedState()
		}
		if !fn(&current) {
			return nil
		}
		return s.replace(current)
	})
	if err != nil {
		s.logFailure(err, "update")
		return false
	}
	return true
}

// replace serializes and atomically writes state. The caller holds the lock.
func (s *Store) replace(state models.SharedState) error {
	data, err := Marshal(state)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode state")
	}
	if err := fsutil.WriteFileAtomic(s.path, data, filePerm); err != nil {
		return errors.WriteFailed(s.path, err)
	}
	return nil
}

func (s *Store) logFailure(err error, op string) {
	entry := s.logger.WithError(err).WithField("op", op)
	if errors.Is(err, errors.ErrCodeLockBusy) {
		entry.Warn("State file lock busy, dropping change")
		return
	}
	entry.Error("State file change failed")
}

func decode(path string, data []byte) (models.SharedState, error) {
	var state models.SharedState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.NewSharedState(), errors.StateCorrupt(path, err)
	}
	if state.Sessions == nil {
		state = models.NewSharedState()
	}
	return state, nil
}
