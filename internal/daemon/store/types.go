// Package store holds the consumer's published view and the messages that
// flow into its single mutation loop.
package store

import (
	"github.com/grovetools/agentwatch/pkg/models"
)

// TrackedSession is a session surfaced to clients, with its display label.
type TrackedSession = models.TrackedSession

// Snapshot is the complete view published after every applied change.
type Snapshot = models.Snapshot

// UpdateType defines what kind of message an Update carries.
type UpdateType string

const (
	// UpdateStateChanged: the state file changed on disk. No payload.
	UpdateStateChanged UpdateType = "state_changed"
	// UpdateStateLoaded: a background read finished. Payload StateLoaded.
	UpdateStateLoaded UpdateType = "state_loaded"
	// UpdateProcesses: a discovery cycle finished. Payload []models.DetectedProcess.
	UpdateProcesses UpdateType = "processes"
	// UpdateSweep: time to evict stale sessions. Payload time.Time.
	UpdateSweep UpdateType = "sweep"
	// UpdateRegistrationChecked: payload RegistrationChecked.
	UpdateRegistrationChecked UpdateType = "registration_checked"
	// UpdateConsent: payload ConsentResult.
	UpdateConsent UpdateType = "consent"
	// UpdateRegistered: payload RegisterResult.
	UpdateRegistered UpdateType = "registered"
	// UpdateUntrack: a client asked to untrack a session. Payload session id string.
	UpdateUntrack UpdateType = "untrack"
	// UpdateSessionRemoved: a local delete finished. Payload SessionRemoved.
	UpdateSessionRemoved UpdateType = "session_removed"
	// UpdateHooksRemoved: hooks were removed for a directory. Payload HooksRemoved.
	UpdateHooksRemoved UpdateType = "hooks_removed"
	// UpdateSnapshot is broadcast to subscribers. Payload Snapshot.
	UpdateSnapshot UpdateType = "snapshot"
)

// Update is a message for the mutation loop or for subscribers.
type Update struct {
	Type    UpdateType
	Source  string // Which collector or worker sent this update
	Payload interface{}
}

// StateLoaded carries a completed read and the generation sampled when it started.
type StateLoaded struct {
	Generation uint64
	State      models.SharedState
}

// RegistrationChecked reports whether hooks already exist for Dir.
type RegistrationChecked struct {
	Dir        string
	PID        int
	Registered bool
	// Failed is set when the check could not complete.
	Failed bool
}

// ConsentResult reports the user's answer for Dir.
type ConsentResult struct {
	Dir      string
	PID      int
	Accepted bool
}

// RegisterResult reports the outcome of installing hooks for Dir.
type RegisterResult struct {
	Dir string
	PID int
	OK  bool
}

// SessionRemoved reports the outcome of deleting a session from the state file.
type SessionRemoved struct {
	ID  string
	Dir string
	OK  bool
	// Untrack is set when the removal was user initiated and hooks may follow.
	Untrack bool
}

// HooksRemoved reports that hook removal for Dir was attempted.
type HooksRemoved struct {
	Dir string
}
