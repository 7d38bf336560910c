package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the derived activity state of a tracked agent session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPending, StatusCompleted:
		return true
	}
	return false
}

// UnknownProject is the display name used when a session has no usable directory.
const UnknownProject = "Unknown"

// SessionRecord is one entry of the shared state file.
//
// ID, ProjectDir and ProjectName are fixed when the record is created; later
// events only change Status, LastEvent and LastUpdated. Fields are declared in
// lexical order of their JSON names so the encoded object has sorted keys.
type SessionRecord struct {
	ID          string    `json:"id"`
	LastEvent   string    `json:"last_event"`
	LastUpdated time.Time `json:"last_updated"`
	ProjectDir  string    `json:"project_dir"`
	ProjectName string    `json:"project_name"`
	Status      Status    `json:"status"`
}

// IdleFor returns how long the record has gone without an update.
func (r SessionRecord) IdleFor(now time.Time) time.Duration {
	return now.Sub(r.LastUpdated)
}

// SharedState is the entire durable content of the state file.
type SharedState struct {
	Sessions map[string]SessionRecord `json:"sessions"`
}

// NewSharedState returns an empty state with an initialized map.
func NewSharedState() SharedState {
	return SharedState{Sessions: make(map[string]SessionRecord)}
}

// Clone returns a deep copy of the state.
func (s SharedState) Clone() SharedState {
	out := SharedState{Sessions: make(map[string]SessionRecord, len(s.Sessions))}
	for id, rec := range s.Sessions {
		out.Sessions[id] = rec
	}
	return out
}

// Timestamp normalizes t to the second-precision UTC form stored on disk.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// UnmarshalJSON tolerates a null or missing sessions object.
func (s *SharedState) UnmarshalJSON(data []byte) error {
	type raw SharedState
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.Sessions == nil {
		r.Sessions = make(map[string]SessionRecord)
	}
	for id, rec := range r.Sessions {
		if rec.ID == "" {
			rec.ID = id
		}
		if rec.ID != id {
			return fmt.Errorf("session key %q does not match record id %q", id, rec.ID)
		}
		r.Sessions[id] = rec
	}
	*s = SharedState(r)
	return nil
}
