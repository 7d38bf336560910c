// Package watcher reports changes to a single file that other processes
// replace atomically.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Kind classifies a change notification.
type Kind int

const (
	// Armed is sent once monitoring starts so the consumer can load the current content.
	Armed Kind = iota
	// Modified means the file was written in place.
	Modified
	// Replaced means the file was renamed over or deleted and monitoring was re-armed.
	Replaced
)

func (k Kind) String() string {
	switch k {
	case Armed:
		return "armed"
	case Modified:
		return "modified"
	case Replaced:
		return "replaced"
	}
	return "unknown"
}

// Change is delivered to the notify callback.
type Change struct {
	Kind Kind
	Path string
}

// Options tunes re-arming.
type Options struct {
	// SettleDelay is how long to wait after a rename or delete before re-opening.
	SettleDelay time.Duration
	// RetryInterval is the pause between attempts to open a missing file.
	RetryInterval time.Duration
	// RetryLimit bounds the number of open attempts.
	RetryLimit int
}

// DefaultOptions returns a 100ms settle delay and 30 open attempts one second apart.
func DefaultOptions() Options {
	return Options{
		SettleDelay:   100 * time.Millisecond,
		RetryInterval: time.Second,
		RetryLimit:    30,
	}
}

// Watcher monitors one file path.
type Watcher struct {
	path   string
	opts   Options
	logger *logrus.Entry
}

// New returns a watcher for path.
func New(path string, opts Options, logger *logrus.Entry) *Watcher {
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = 1
	}
	return &Watcher{path: path, opts: opts, logger: logger.WithField("path", path)}
}

// Run watches until ctx is done or the file cannot be opened within the retry
// limit. notify is called from the Run goroutine only; callers marshal the
// notification onto their own execution context.
func (w *Watcher) Run(ctx context.Context, notify func(Change)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := w.arm(ctx, fw); err != nil {
		return err
	}
	notify(Change{Kind: Armed, Path: w.path})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.logger.Debugf("fsnotify event: op=%v", event.Op)

			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				// The watched inode is gone; the replacement is a new file.
				_ = fw.Remove(w.path)
				if !sleep(ctx, w.opts.SettleDelay) {
					return ctx.Err()
				}
				if err := w.arm(ctx, fw); err != nil {
					return err
				}
				notify(Change{Kind: Replaced, Path: w.path})
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				notify(Change{Kind: Modified, Path: w.path})
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")
		}
	}
}

// arm adds the file to fw, retrying while it does not exist.
func (w *Watcher) arm(ctx context.Context, fw *fsnotify.Watcher) error {
	for attempt := 1; ; attempt++ {
		err := fw.Add(w.path)
		if err == nil {
			if attempt > 1 {
				w.logger.Debugf("Watching after %d attempts", attempt)
			}
			return nil
		}
		if attempt >= w.opts.RetryLimit {
			w.logger.WithError(err).Warn("Giving up on watching state file")
			return fmt.Errorf("watch %s: gave up after %d attempts: %w", w.path, attempt, err)
		}
		if !sleep(ctx, w.opts.RetryInterval) {
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
