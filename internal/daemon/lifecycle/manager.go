// Package lifecycle decides which agent sessions are tracked, evicts stale
// ones and drives hook registration for newly detected agent processes.
//
// A Manager is confined to a single goroutine: every method must be called
// from the loop that applies updates. Blocking work (file reads and writes,
// settings edits, consent prompts) is handed to a Dispatcher and its result
// comes back later as another update.
package lifecycle

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/grovetools/agentwatch/pkg/consent"
	"github.com/grovetools/agentwatch/pkg/labels"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/util/pathutil"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// StateStore is the shared session file.
type StateStore interface {
	Read() models.SharedState
	Update(fn func(*models.SharedState) bool) bool
}

// HookRegistry installs and removes the status hook for a directory.
type HookRegistry interface {
	Register(dir string) bool
	Remove(dir string)
	HasRegistered(dir string) bool
}

// Dispatcher runs a job off the mutation loop and feeds its result back in.
type Dispatcher interface {
	Dispatch(name string, job func() store.Update)
}

// Publisher receives the view after every applied change.
type Publisher interface {
	Publish(store.Snapshot)
}

// Deps are the Manager's collaborators.
type Deps struct {
	State      StateStore
	Hooks      HookRegistry
	Prompter   consent.Prompter
	Dispatcher Dispatcher
	Publisher  Publisher
}

// Options tunes the Manager.
type Options struct {
	// MaxTracked is the number of sessions surfaced at once.
	MaxTracked int
	// StaleAfter is the idle time after which an idle session is evicted.
	StaleAfter time.Duration
	// Ignore lists directory patterns never offered registration.
	Ignore []string
	// Now is the clock; defaults to time.Now.
	Now    func() time.Time
	Logger *logrus.Entry
}

// Manager owns the consumer's in-memory session and registration state.
type Manager struct {
	deps   Deps
	opts   Options
	ignore *patternmatcher.PatternMatcher
	logger *logrus.Entry

	sessions map[string]models.SessionRecord

	// generation advances on every applied local mutation. Reads carry the
	// value sampled when they started and are dropped if it moved.
	generation uint64
	// inFlight counts local writes not yet completed. No read is scheduled
	// or applied while it is non-zero.
	inFlight int

	registered map[string]bool // directories with hooks installed
	pending    map[string]bool // directories with consent or registration outstanding
	checking   map[string]bool // directories with a registration check outstanding
	acked      map[int]string  // processes that need no further handling, by directory
	removing   map[string]bool // sessions with a delete outstanding
}

// New creates a Manager.
func New(deps Deps, opts Options) (*Manager, error) {
	if opts.MaxTracked <= 0 {
		opts.MaxTracked = 5
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 300 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Prompter == nil {
		deps.Prompter = consent.Never{}
	}

	patterns := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		patterns = append(patterns, ignorePattern(p))
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, err
	}

	return &Manager{
		deps:       deps,
		opts:       opts,
		ignore:     pm,
		logger:     opts.Logger,
		sessions:   make(map[string]models.SessionRecord),
		registered: make(map[string]bool),
		pending:    make(map[string]bool),
		checking:   make(map[string]bool),
		acked:      make(map[int]string),
		removing:   make(map[string]bool),
	}, nil
}

// Apply handles one update. It never blocks.
func (m *Manager) Apply(u store.Update) {
	switch u.Type {
	case store.UpdateStateChanged:
		m.scheduleRead()

	case store.UpdateStateLoaded:
		if p, ok := u.Payload.(store.StateLoaded); ok {
			m.applyLoaded(p)
		}

	case store.UpdateProcesses:
		if procs, ok := u.Payload.([]models.DetectedProcess); ok {
			m.handleProcesses(procs)
		}

	case store.UpdateSweep:
		m.Sweep()

	case store.UpdateRegistrationChecked:
		if p, ok := u.Payload.(store.RegistrationChecked); ok {
			m.handleChecked(p)
		}

	case store.UpdateConsent:
		if p, ok := u.Payload.(store.ConsentResult); ok {
			m.handleConsent(p)
		}

	case store.UpdateRegistered:
		if p, ok := u.Payload.(store.RegisterResult); ok {
			m.handleRegistered(p)
		}

	case store.UpdateUntrack:
		if id, ok := u.Payload.(string); ok {
			m.Untrack(id)
		}

	case store.UpdateSessionRemoved:
		if p, ok := u.Payload.(store.SessionRemoved); ok {
			m.handleRemoved(p)
		}

	case store.UpdateHooksRemoved:
		if p, ok := u.Payload.(store.HooksRemoved); ok {
			delete(m.registered, p.Dir)
			delete(m.pending, p.Dir)
			for pid, dir := range m.acked {
				if dir == p.Dir {
					delete(m.acked, pid)
				}
			}
			m.logger.WithField("dir", p.Dir).Info("Directory eligible for registration again")
			m.publish()
		}

	default:
		m.logger.WithField("type", u.Type).Debug("Ignoring update")
	}
}

// Tracked returns the surfaced sessions: the MaxTracked most recently
// updated, newest first, ties broken by id.
func (m *Manager) Tracked() []models.SessionRecord {
	return models.SelectTracked(m.sessions, m.opts.MaxTracked)
}

// Labels returns the label of every tracked session's directory.
func (m *Manager) Labels() map[string]string {
	return labels.Assign(m.trackedDirs())
}

// Generation returns the local mutation counter.
func (m *Manager) Generation() uint64 {
	return m.generation
}

// InFlight returns the number of local writes not yet completed.
func (m *Manager) InFlight() int {
	return m.inFlight
}

// IsRegistered reports whether hooks are known to be installed for dir.
func (m *Manager) IsRegistered(dir string) bool {
	return m.registered[dir]
}

// Sweep evicts idle sessions that have not been updated for longer than
// StaleAfter. Sessions in any other status are kept however old they are.
func (m *Manager) Sweep() {
	now := m.opts.Now()
	for _, rec := range m.Tracked() {
		if rec.Status != models.StatusIdle || rec.IdleFor(now) <= m.opts.StaleAfter {
			continue
		}
		m.logger.WithFields(logrus.Fields{"session": rec.ID, "idle": rec.IdleFor(now).Round(time.Second)}).
			Info("Evicting stale session")
		m.removeSession(rec.ID, false)
	}
}

// Untrack deletes a session. Once the delete succeeds and no other tracked
// session shares its directory, the directory's hooks are removed.
func (m *Manager) Untrack(id string) {
	if _, ok := m.sessions[id]; !ok {
		m.logger.WithField("session", id).Warn("Untrack requested for unknown session")
		return
	}
	m.removeSession(id, true)
}

// dispatch hands job to the dispatcher. If job panics, failed is returned
// in place of its result so the loop still sees the work finish. A zero
// failed update is ignored by Apply.
func (m *Manager) dispatch(name string, failed store.Update, job func() store.Update) {
	logger := m.logger
	m.deps.Dispatcher.Dispatch(name, func() (u store.Update) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{"job": name, "panic": r}).Error("Job panicked")
				u = failed
			}
		}()
		return job()
	})
}

func (m *Manager) scheduleRead() {
	if m.inFlight > 0 {
		m.logger.Debug("Local write in progress, skipping read")
		return
	}
	gen := m.generation
	st := m.deps.State
	m.dispatch("read", store.Update{}, func() store.Update {
		return store.Update{
			Type:    store.UpdateStateLoaded,
			Payload: store.StateLoaded{Generation: gen, State: st.Read()},
		}
	})
}

func (m *Manager) applyLoaded(p store.StateLoaded) {
	if p.Generation != m.generation {
		m.logger.WithFields(logrus.Fields{"read": p.Generation, "current": m.generation}).
			Debug("Discarding read older than a local change")
		return
	}
	if m.inFlight > 0 {
		m.logger.Debug("Discarding read that raced a local write")
		return
	}
	m.sessions = p.State.Clone().Sessions
	m.publish()
}

func (m *Manager) removeSession(id string, untrack bool) {
	if m.removing[id] {
		return
	}
	rec := m.sessions[id]
	m.removing[id] = true
	m.inFlight++

	st := m.deps.State
	dir := rec.ProjectDir
	failed := store.Update{
		Type:    store.UpdateSessionRemoved,
		Payload: store.SessionRemoved{ID: id, Dir: dir, Untrack: untrack},
	}
	m.dispatch("remove", failed, func() store.Update {
		ok := st.Update(func(s *models.SharedState) bool {
			if _, exists := s.Sessions[id]; !exists {
				return false
			}
			delete(s.Sessions, id)
			return true
		})
		return store.Update{
			Type:    store.UpdateSessionRemoved,
			Payload: store.SessionRemoved{ID: id, Dir: dir, OK: ok, Untrack: untrack},
		}
	})
}

func (m *Manager) handleRemoved(p store.SessionRemoved) {
	delete(m.removing, p.ID)
	if m.inFlight > 0 {
		m.inFlight--
	}

	logger := m.logger.WithField("session", p.ID)
	if p.OK {
		delete(m.sessions, p.ID)
		m.generation++
		m.publish()
	} else {
		logger.Warn("Failed to remove session, will retry on a later cycle")
	}

	if p.OK && p.Untrack && !m.dirTracked(p.Dir) {
		dir := p.Dir
		hooks := m.deps.Hooks
		done := store.Update{Type: store.UpdateHooksRemoved, Payload: store.HooksRemoved{Dir: dir}}
		m.dispatch("unregister", done, func() store.Update {
			hooks.Remove(dir)
			return done
		})
	}

	// Changes suppressed while the write was in flight are picked up here.
	m.scheduleRead()
}

func (m *Manager) handleProcesses(procs []models.DetectedProcess) {
	live := make(map[int]bool, len(procs))
	for _, p := range procs {
		live[p.PID] = true
	}
	for pid := range m.acked {
		if !live[pid] {
			delete(m.acked, pid)
		}
	}

	tracked := make(map[string]bool)
	for _, dir := range m.trackedDirs() {
		tracked[dir] = true
	}
	for _, p := range procs {
		m.offer(p, tracked)
	}
}

// offer starts the registration handshake for a process if it needs one.
func (m *Manager) offer(p models.DetectedProcess, tracked map[string]bool) {
	dir := p.ProjectDir
	if _, ok := m.acked[p.PID]; ok || dir == "" {
		return
	}
	if m.registered[dir] {
		m.acked[p.PID] = dir
		return
	}
	if tracked[dir] || m.checking[dir] || m.pending[dir] {
		return
	}
	if m.ignored(dir) {
		m.acked[p.PID] = dir
		return
	}
	if m.atCapacity() {
		return
	}

	m.checking[dir] = true
	hooks := m.deps.Hooks
	pid := p.PID
	failed := store.Update{
		Type:    store.UpdateRegistrationChecked,
		Payload: store.RegistrationChecked{Dir: dir, PID: pid, Failed: true},
	}
	m.dispatch("check", failed, func() store.Update {
		return store.Update{
			Type:    store.UpdateRegistrationChecked,
			Payload: store.RegistrationChecked{Dir: dir, PID: pid, Registered: hooks.HasRegistered(dir)},
		}
	})
}

func (m *Manager) handleChecked(p store.RegistrationChecked) {
	delete(m.checking, p.Dir)
	if p.Failed {
		m.logger.WithFields(logrus.Fields{"dir": p.Dir, "pid": p.PID}).Warn("Registration check failed, will offer again")
		return
	}
	if p.Registered {
		m.registered[p.Dir] = true
		m.acked[p.PID] = p.Dir
		m.publish()
		return
	}
	if m.pending[p.Dir] || m.atCapacity() {
		return
	}

	m.pending[p.Dir] = true
	prompter := m.deps.Prompter
	declined := store.Update{Type: store.UpdateConsent, Payload: store.ConsentResult{Dir: p.Dir, PID: p.PID}}
	m.dispatch("consent", declined, func() store.Update {
		return store.Update{
			Type:    store.UpdateConsent,
			Payload: store.ConsentResult{Dir: p.Dir, PID: p.PID, Accepted: prompter.RequestConsent(p.Dir, p.PID)},
		}
	})
}

func (m *Manager) handleConsent(p store.ConsentResult) {
	logger := m.logger.WithFields(logrus.Fields{"dir": p.Dir, "pid": p.PID})
	if !p.Accepted {
		delete(m.pending, p.Dir)
		m.acked[p.PID] = p.Dir
		logger.Info("Hook registration declined")
		return
	}

	hooks := m.deps.Hooks
	failed := store.Update{Type: store.UpdateRegistered, Payload: store.RegisterResult{Dir: p.Dir, PID: p.PID}}
	m.dispatch("register", failed, func() store.Update {
		return store.Update{
			Type:    store.UpdateRegistered,
			Payload: store.RegisterResult{Dir: p.Dir, PID: p.PID, OK: hooks.Register(p.Dir)},
		}
	})
}

func (m *Manager) handleRegistered(p store.RegisterResult) {
	delete(m.pending, p.Dir)
	logger := m.logger.WithFields(logrus.Fields{"dir": p.Dir, "pid": p.PID})
	if !p.OK {
		logger.Warn("Hook registration failed, will offer again")
		return
	}
	m.registered[p.Dir] = true
	m.acked[p.PID] = p.Dir
	logger.Info("Hook registered")
	m.publish()
}

func (m *Manager) atCapacity() bool {
	return len(m.sessions) >= m.opts.MaxTracked
}

func (m *Manager) dirTracked(dir string) bool {
	for _, d := range m.trackedDirs() {
		if d == dir {
			return true
		}
	}
	return false
}

func (m *Manager) trackedDirs() []string {
	return models.Dirs(m.Tracked())
}

// ignorePattern puts p in the form ignored matches against: home and
// environment references expanded, cleaned, and without the leading slash.
// Relative patterns are taken from the filesystem root.
func ignorePattern(p string) string {
	if strings.HasPrefix(p, "~") || strings.Contains(p, "$") {
		if expanded, err := pathutil.Expand(p); err == nil {
			p = expanded
		}
	}
	return strings.TrimPrefix(filepath.Clean("/"+p), "/")
}

func (m *Manager) ignored(dir string) bool {
	matched, err := m.ignore.MatchesOrParentMatches(strings.TrimPrefix(filepath.Clean(dir), "/"))
	if err != nil {
		m.logger.WithError(err).Debug("Ignore pattern match failed")
		return false
	}
	return matched
}

func (m *Manager) publish() {
	if m.deps.Publisher == nil {
		return
	}
	registered := make([]string, 0, len(m.registered))
	for dir := range m.registered {
		registered = append(registered, dir)
	}
	m.deps.Publisher.Publish(models.NewSnapshot(m.Tracked(), m.Labels(), registered, m.generation, m.opts.Now()))
}
