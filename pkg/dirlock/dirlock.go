// Package dirlock implements a cross-process advisory lock for a single file.
//
// The lock for <file> is the directory <file>.lock. Directory creation is atomic
// on every supported filesystem, so exactly one process wins. The winner records
// its PID in <file>.lock/pid so that contenders can detect a holder that died
// without releasing.
package dirlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/agentwatch/errors"
	"github.com/grovetools/agentwatch/pkg/process"
	"github.com/sirupsen/logrus"
)

const (
	// Suffix is appended to the protected file's path to form the marker path.
	Suffix = ".lock"

	pidFileName = "pid"

	// A marker without a readable pid is only considered abandoned after this long.
	orphanAge = 10 * time.Second
)

// Options bounds how long Acquire waits for a busy lock.
type Options struct {
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *logrus.Entry
}

// DefaultOptions retries for roughly one second: 10ms doubling up to 160ms, nine times.
func DefaultOptions() Options {
	return Options{
		Retries:        9,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     160 * time.Millisecond,
	}
}

// Lock is a held marker. Release it exactly once via defer.
type Lock struct {
	path string
	pid  int
}

// MarkerPath returns the lock marker path protecting target.
func MarkerPath(target string) string {
	return target + Suffix
}

// Path returns the marker directory.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock protecting target.
//
// It retries with exponential backoff. When the retries are exhausted the
// recorded holder is inspected: a dead holder's marker is removed and
// acquisition is attempted once more, a live holder yields an
// ErrCodeLockBusy error. Acquire never blocks beyond the configured bound.
func Acquire(target string, opts Options) (*Lock, error) {
	path := MarkerPath(target)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLockFailed, "failed to create lock parent directory").
			WithDetail("path", path)
	}

	lock, err := tryCreate(path)
	if err == nil {
		return lock, nil
	}
	if !os.IsExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeLockFailed, "failed to create lock marker").
			WithDetail("path", path)
	}

	backoff := opts.InitialBackoff
	for i := 0; i < opts.Retries; i++ {
		time.Sleep(backoff)
		if backoff *= 2; opts.MaxBackoff > 0 && backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}

		lock, err = tryCreate(path)
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeLockFailed, "failed to create lock marker").
				WithDetail("path", path)
		}
	}

	holder, alive := inspect(path)
	if alive {
		return nil, errors.LockBusy(path, holder)
	}

	if err := breakStale(path, holder); err != nil {
		if opts.Logger != nil {
			opts.Logger.WithError(err).WithField("path", path).Warn("Failed to remove stale lock")
		}
		return nil, errors.LockBusy(path, holder)
	}
	if opts.Logger != nil {
		opts.Logger.WithFields(logrus.Fields{"path": path, "old_pid": holder}).Warn("Removed stale lock")
	}

	lock, err = tryCreate(path)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := inspect(path)
			return nil, errors.LockBusy(path, holder)
		}
		return nil, errors.Wrap(err, errors.ErrCodeLockFailed, "failed to create lock marker").
			WithDetail("path", path)
	}
	return lock, nil
}

// Release removes the marker if it is still ours. Safe to call on nil and more than once.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	defer func() { l.path = "" }()

	pid, err := readPID(l.path)
	if err == nil && pid != l.pid {
		// Someone broke our lock and now holds their own.
		return nil
	}
	if err := os.RemoveAll(l.path); err != nil {
		return fmt.Errorf("remove lock marker: %w", err)
	}
	return nil
}

// With runs fn while holding the lock for target. The lock is released on every path.
func With(target string, opts Options, fn func() error) error {
	lock, err := Acquire(target, opts)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// ReadHolder returns the PID recorded in the marker protecting target.
func ReadHolder(target string) (int, error) {
	return readPID(MarkerPath(target))
}

func tryCreate(path string) (*Lock, error) {
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, err
	}

	pid := os.Getpid()
	if err := os.WriteFile(filepath.Join(path, pidFileName), []byte(strconv.Itoa(pid)), 0644); err != nil {
		os.RemoveAll(path)
		return nil, err
	}
	return &Lock{path: path, pid: pid}, nil
}

func readPID(path string) (int, error) {
	content, err := os.ReadFile(filepath.Join(path, pidFileName))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// inspect reports the holder's PID and whether the marker should be respected.
func inspect(path string) (int, bool) {
	pid, err := readPID(path)
	if err == nil {
		return pid, process.IsProcessAlive(pid)
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		// Released between our last attempt and now.
		return 0, false
	}
	// The holder may be between mkdir and writing its pid.
	return 0, time.Since(info.ModTime()) < orphanAge
}

// breakStale moves a dead holder's marker aside before deleting it, so a marker
// created by a new holder in the meantime is never deleted.
func breakStale(path string, stalePID int) error {
	aside := fmt.Sprintf("%s.stale-%d-%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, aside); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	movedPID, err := readPID(aside)
	if err == nil && movedPID != stalePID && process.IsProcessAlive(movedPID) {
		// We raced with a new holder; give its marker back.
		if restoreErr := os.Rename(aside, path); restoreErr != nil {
			return fmt.Errorf("restore live lock: %w", restoreErr)
		}
		return fmt.Errorf("lock was re-acquired by PID %d", movedPID)
	}
	return os.RemoveAll(aside)
}
