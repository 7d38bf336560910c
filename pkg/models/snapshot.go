package models

import (
	"sort"
	"time"
)

// TrackedSession is a session surfaced to clients, with its display label.
type TrackedSession struct {
	SessionRecord
	Label string `json:"label"`
}

// Snapshot is the consumer's view of tracked sessions and registered directories.
type Snapshot struct {
	Sessions   []TrackedSession `json:"sessions"`
	Registered []string         `json:"registered"`
	Generation uint64           `json:"generation"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// SelectTracked returns the max most recently updated sessions, newest
// first, ties broken by id.
func SelectTracked(sessions map[string]SessionRecord, max int) []SessionRecord {
	all := make([]SessionRecord, 0, len(sessions))
	for _, rec := range sessions {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastUpdated.Equal(all[j].LastUpdated) {
			return all[i].LastUpdated.After(all[j].LastUpdated)
		}
		return all[i].ID < all[j].ID
	})
	if max > 0 && len(all) > max {
		all = all[:max]
	}
	return all
}

// Dirs returns the distinct project directories of recs in order of first appearance.
func Dirs(recs []SessionRecord) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, rec := range recs {
		if !seen[rec.ProjectDir] {
			seen[rec.ProjectDir] = true
			dirs = append(dirs, rec.ProjectDir)
		}
	}
	return dirs
}

// NewSnapshot labels tracked sessions by directory and sorts registered.
func NewSnapshot(tracked []SessionRecord, labels map[string]string, registered []string, generation uint64, at time.Time) Snapshot {
	snap := Snapshot{
		Sessions:   make([]TrackedSession, 0, len(tracked)),
		Registered: append([]string{}, registered...),
		Generation: generation,
		UpdatedAt:  at,
	}
	for _, rec := range tracked {
		snap.Sessions = append(snap.Sessions, TrackedSession{SessionRecord: rec, Label: labels[rec.ProjectDir]})
	}
	sort.Strings(snap.Registered)
	return snap
}
