// Package hookregistry installs and removes the agentwatch status hook in an
// agent's JSON settings files.
//
// Entries owned by agentwatch are recognized by Marker inside their command.
// Every other entry, and every other key of the settings document, is left in
// place and in order.
package hookregistry

import (
	"io"
	"os"
	"path/filepath"

	"github.com/grovetools/agentwatch/errors"
	"github.com/grovetools/agentwatch/pkg/dirlock"
	"github.com/grovetools/agentwatch/pkg/hookevent"
	"github.com/grovetools/agentwatch/util/fsutil"
	"github.com/sirupsen/logrus"
)

// Marker tags commands installed by agentwatch.
const Marker = "agentwatch-status-hook"

const settingsPerm = 0644

// Options configures a Registry.
type Options struct {
	// GlobalSettings is the settings file used when a project has no local one.
	GlobalSettings string
	// LocalSettings is the project-local settings file, relative to the project directory.
	LocalSettings string
	// Command is the writer invocation; the marker is appended to it.
	Command string
	// Events overrides the event names to register. Defaults to hookevent.Names.
	Events []string
	Lock   dirlock.Options
	Logger *logrus.Entry
}

// Registry edits hook settings files.
type Registry struct {
	opts Options
}

// New creates a Registry.
func New(opts Options) *Registry {
	if len(opts.Events) == 0 {
		opts.Events = hookevent.Names
	}
	if opts.Lock.Retries == 0 && opts.Lock.InitialBackoff == 0 {
		opts.Lock = dirlock.DefaultOptions()
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = logrus.NewEntry(l)
	}
	if opts.Lock.Logger == nil {
		opts.Lock.Logger = opts.Logger
	}
	return &Registry{opts: opts}
}

// Command returns the command line written into each entry.
func (r *Registry) Command() string {
	return r.opts.Command + " --tag " + Marker
}

// SettingsPath returns the file that is authoritative for dir: the project-local
// settings file if it exists, otherwise the global one.
func (r *Registry) SettingsPath(dir string) string {
	if local := r.localPath(dir); local != "" {
		if info, err := os.Stat(local); err == nil && !info.IsDir() {
			return local
		}
	}
	return r.opts.GlobalSettings
}

func (r *Registry) localPath(dir string) string {
	if dir == "" || r.opts.LocalSettings == "" {
		return ""
	}
	if filepath.IsAbs(r.opts.LocalSettings) {
		return r.opts.LocalSettings
	}
	return filepath.Join(dir, r.opts.LocalSettings)
}

// Register adds a marked entry for every event that lacks one. Events that
// already carry the marker are not touched, so repeated calls never duplicate
// entries. It reports false if the file is unreadable, the lock is busy or the
// write fails; an invalid settings file is never overwritten.
func (r *Registry) Register(dir string) bool {
	path := r.SettingsPath(dir)
	logger := r.opts.Logger.WithField("settings", path)

	var added int
	err := dirlock.With(path, r.opts.Lock, func() error {
		doc, err := loadDocument(path)
		if err != nil {
			return err
		}
		hooks, err := doc.hooks(path)
		if err != nil {
			return err
		}
		if hooks == nil {
			hooks = make(map[string]interface{})
		}

		for _, event := range r.opts.Events {
			elems, err := parseEvent(path, event, hooks[event])
			if err != nil {
				return err
			}
			if hasMarker(elems, Marker) {
				continue
			}
			elems = append(elems, element{
				kind: kindGroup,
				group: matcherGroup{Hooks: []hookEntry{{
					Type:    "command",
					Command: r.Command(),
				}}},
			})
			hooks[event] = encodeEvent(elems)
			added++
		}
		if added == 0 {
			return nil
		}

		doc["hooks"] = hooks
		return r.write(path, doc)
	})
	if err != nil {
		logFailure(logger, err, "register")
		return false
	}
	if added > 0 {
		logger.WithField("events", added).Info("Registered status hook")
	}
	return true
}

// Remove deletes marked entries from both the project-local and the global
// settings file. Empty event lists and an empty hooks object are deleted.
// Failures are logged and otherwise ignored.
func (r *Registry) Remove(dir string) {
	var targets []string
	if local := r.localPath(dir); local != "" {
		targets = append(targets, local)
	}
	if r.opts.GlobalSettings != "" && (len(targets) == 0 || targets[0] != r.opts.GlobalSettings) {
		targets = append(targets, r.opts.GlobalSettings)
	}

	for _, path := range targets {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := r.removeFrom(path); err != nil {
			logFailure(r.opts.Logger.WithField("settings", path), err, "remove")
		}
	}
}

func (r *Registry) removeFrom(path string) error {
	return dirlock.With(path, r.opts.Lock, func() error {
		doc, err := loadDocument(path)
		if err != nil {
			return err
		}
		hooks, err := doc.hooks(path)
		if err != nil || hooks == nil {
			return err
		}

		changed := false
		for _, event := range r.opts.Events {
			v, ok := hooks[event]
			if !ok {
				continue
			}
			elems, err := parseEvent(path, event, v)
			if err != nil {
				return err
			}
			kept, removed := withoutMarker(elems, Marker)
			if !removed {
				continue
			}
			changed = true
			if len(kept) == 0 {
				delete(hooks, event)
			} else {
				hooks[event] = encodeEvent(kept)
			}
		}
		if !changed {
			return nil
		}

		if len(hooks) == 0 {
			delete(doc, "hooks")
		} else {
			doc["hooks"] = hooks
		}
		r.opts.Logger.WithField("settings", path).Info("Removed status hook")
		return r.write(path, doc)
	})
}

// HasRegistered reports whether every event carries the marker in the
// authoritative settings file. A partial registration counts as absent.
func (r *Registry) HasRegistered(dir string) bool {
	path := r.SettingsPath(dir)
	doc, err := loadDocument(path)
	if err != nil {
		r.opts.Logger.WithError(err).Debug("Cannot inspect settings")
		return false
	}
	hooks, err := doc.hooks(path)
	if err != nil || hooks == nil {
		return false
	}
	for _, event := range r.opts.Events {
		elems, err := parseEvent(path, event, hooks[event])
		if err != nil || !hasMarker(elems, Marker) {
			return false
		}
	}
	return true
}

func (r *Registry) write(path string, doc document) error {
	data, err := doc.encode()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode settings")
	}
	if err := fsutil.WriteFileAtomic(path, data, settingsPerm); err != nil {
		return errors.WriteFailed(path, err)
	}
	return nil
}

func logFailure(logger *logrus.Entry, err error, op string) {
	entry := logger.WithError(err).WithField("op", op)
	switch errors.GetCode(err) {
	case errors.ErrCodeSettingsInvalid:
		entry.Warn("Settings file is invalid, leaving it untouched")
	case errors.ErrCodeLockBusy:
		entry.Warn("Settings file lock busy")
	default:
		entry.Error("Settings file change failed")
	}
}
