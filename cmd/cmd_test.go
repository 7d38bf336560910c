package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/agentwatch/logging"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/pkg/paths"
	"github.com/grovetools/agentwatch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := testutil.IsolateHome(t)
	logging.Reset()
	t.Cleanup(logging.Reset)
	return home
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readState(t *testing.T) models.SharedState {
	t.Helper()
	data, err := os.ReadFile(paths.StateFilePath())
	require.NoError(t, err)
	var st models.SharedState
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func TestHookRecordsSession(t *testing.T) {
	isolate(t)

	out, err := execute(t, `{"session_id":"s1","hook_event_name":"UserPromptSubmit","cwd":"/work/alpha"}`, "hook")
	require.NoError(t, err)
	assert.Empty(t, out)

	st := readState(t)
	require.Contains(t, st.Sessions, "s1")
	rec := st.Sessions["s1"]
	assert.Equal(t, models.StatusRunning, rec.Status)
	assert.Equal(t, "/work/alpha", rec.ProjectDir)
	assert.Equal(t, "alpha", rec.ProjectName)
}

func TestHookSessionEndRemovesSession(t *testing.T) {
	isolate(t)

	_, err := execute(t, `{"session_id":"s1","hook_event_name":"Stop","cwd":"/work/alpha"}`, "hook")
	require.NoError(t, err)
	require.Contains(t, readState(t).Sessions, "s1")

	_, err = execute(t, `{"session_id":"s1","hook_event_name":"SessionEnd","cwd":"/work/alpha"}`, "hook")
	require.NoError(t, err)
	assert.NotContains(t, readState(t).Sessions, "s1")
}

func TestHookIsSilentOnBadInput(t *testing.T) {
	isolate(t)

	for _, in := range []string{"", "not json", `{"hook_event_name":"Stop"}`} {
		out, err := execute(t, in, "hook", "--unknown-flag", "extra")
		require.NoError(t, err, in)
		assert.Empty(t, out, in)
	}
	_, err := os.Stat(paths.StateFilePath())
	assert.True(t, os.IsNotExist(err))
}

func TestHookIgnoredEventLeavesFileAlone(t *testing.T) {
	isolate(t)

	_, err := execute(t, `{"session_id":"s1","hook_event_name":"Notification","cwd":"/work/alpha"}`, "hook")
	require.NoError(t, err)
	_, err = os.Stat(paths.StateFilePath())
	assert.True(t, os.IsNotExist(err))
}

func TestLabelsCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "labels", "/src/alpha", "/src/app-one", "/src/app-two")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "\t/src/alpha"))
	assert.True(t, strings.HasSuffix(lines[1], "\t/src/app-one"))

	out, err = execute(t, "", "labels", "--json", "/src/alpha")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "a", got["/src/alpha"])
}

func TestPathsCommandJSON(t *testing.T) {
	home := isolate(t)

	out, err := execute(t, "", "paths", "--json")
	require.NoError(t, err)
	var got PathsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, filepath.Join(home, "state", "agentwatch", "sessions.json"), got.StateFile)
	assert.Equal(t, filepath.Join(home, "state", "agentwatch", "agentwatch.sock"), got.Socket)
}

func TestStatusWithoutConsumerReadsFile(t *testing.T) {
	isolate(t)

	_, err := execute(t, `{"session_id":"s1","hook_event_name":"PermissionRequest","cwd":"/work/alpha"}`, "hook")
	require.NoError(t, err)

	out, err := execute(t, "", "status", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "[a]")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "/work/alpha")
}

func TestUntrackRemovesSessionFromFile(t *testing.T) {
	isolate(t)
	now := time.Now().UTC()
	testutil.WriteState(t, paths.StateFilePath(),
		testutil.Session("s1", "/work/alpha", models.StatusIdle, now),
		testutil.Session("s2", "/work/beta", models.StatusRunning, now),
	)

	out, err := execute(t, "", "untrack", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Untracked s1")

	st := readState(t)
	assert.NotContains(t, st.Sessions, "s1")
	assert.Contains(t, st.Sessions, "s2")
}

func TestUntrackUnknownSession(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "untrack", "missing")
	assert.Error(t, err)
}

func TestShowLogTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hook.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, showLog(&out, path, 2, false, nil))
	assert.Equal(t, "two\nthree\n", out.String())
}

func TestAgo(t *testing.T) {
	assert.Equal(t, "0s ago", ago(-time.Second))
	assert.Equal(t, "42s ago", ago(42*time.Second))
	assert.Equal(t, "5m ago", ago(5*time.Minute+10*time.Second))
	assert.Equal(t, "3h ago", ago(3*time.Hour))
	assert.Equal(t, "2d ago", ago(50*time.Hour))
}

func TestRegisterRoundTrip(t *testing.T) {
	home := isolate(t)
	project := filepath.Join(home, "work", "alpha")
	require.NoError(t, os.MkdirAll(project, 0755))

	out, err := execute(t, "", "registered", project)
	require.NoError(t, err)
	assert.Equal(t, "no\n", out)

	_, err = execute(t, "", "register", project)
	require.NoError(t, err)
	settings := filepath.Join(home, ".claude", "settings.json")
	data, err := os.ReadFile(settings)
	require.NoError(t, err)
	assert.Contains(t, string(data), "agentwatch-status-hook")

	out, err = execute(t, "", "registered", "--json", project)
	require.NoError(t, err)
	var status registrationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Registered)
	assert.Equal(t, settings, status.Settings)

	_, err = execute(t, "", "unregister", project)
	require.NoError(t, err)
	out, err = execute(t, "", "registered", project)
	require.NoError(t, err)
	assert.Equal(t, "no\n", out)
}

func TestConfigValidate(t *testing.T) {
	dir := isolate(t)
	good := filepath.Join(dir, "good.yml")
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(good, []byte("max_tracked: 3\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("registration:\n  mode: sometimes\n"), 0644))

	out, err := execute(t, "", "config", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, "", "config", "validate", bad)
	assert.Error(t, err)
}
