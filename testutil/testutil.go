// Package testutil holds helpers shared by agentwatch tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/state"
	"github.com/stretchr/testify/require"
)

// IsolateHome points every agentwatch and agent path at a fresh temporary
// directory for the duration of the test and returns it.
func IsolateHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("AGENTWATCH_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	return home
}

// RandomString generates a random hex string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// WriteState writes sessions to path in the state file format.
func WriteState(t *testing.T, path string, sessions ...models.SessionRecord) {
	t.Helper()

	st := models.NewSharedState()
	for _, s := range sessions {
		st.Sessions[s.ID] = s
	}
	data, err := state.Marshal(st)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// Session builds a record for dir with the given status, updated at.
func Session(id, dir string, status models.Status, at time.Time) models.SessionRecord {
	return models.SessionRecord{
		ID:          id,
		LastEvent:   "Test",
		LastUpdated: at,
		ProjectDir:  dir,
		ProjectName: filepath.Base(dir),
		Status:      status,
	}
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, msg)
}
