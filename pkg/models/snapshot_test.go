package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectTracked(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	sessions := map[string]SessionRecord{
		"old": {ID: "old", LastUpdated: now.Add(-time.Hour)},
		"b":   {ID: "b", LastUpdated: now},
		"a":   {ID: "a", LastUpdated: now},
		"mid": {ID: "mid", LastUpdated: now.Add(-time.Minute)},
	}

	var ids []string
	for _, rec := range SelectTracked(sessions, 3) {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"a", "b", "mid"}, ids)
	assert.Len(t, SelectTracked(sessions, 0), 4)
	assert.Empty(t, SelectTracked(nil, 5))
}

func TestNewSnapshot(t *testing.T) {
	recs := []SessionRecord{{ID: "s1", ProjectDir: "/p/b"}, {ID: "s2", ProjectDir: "/p/a"}, {ID: "s3", ProjectDir: "/p/b"}}
	assert.Equal(t, []string{"/p/b", "/p/a"}, Dirs(recs))

	reg := []string{"/p/z", "/p/a"}
	snap := NewSnapshot(recs, map[string]string{"/p/a": "a", "/p/b": "b"}, reg, 7, time.Time{})
	assert.Equal(t, []string{"/p/a", "/p/z"}, snap.Registered)
	assert.Equal(t, []string{"/p/z", "/p/a"}, reg, "input is not reordered")
	assert.Equal(t, "b", snap.Sessions[0].Label)
	assert.Equal(t, "a", snap.Sessions[1].Label)
	assert.Equal(t, "b", snap.Sessions[2].Label)
	assert.Equal(t, uint64(7), snap.Generation)
}
