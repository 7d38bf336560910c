package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("AGENTWATCH_HOME", root)

	assert.Equal(t, filepath.Join(root, "config", "agentwatch"), ConfigDir())
	assert.Equal(t, filepath.Join(root, "state", "agentwatch"), StateDir())
	assert.Equal(t, filepath.Join(root, "state", "agentwatch", "sessions.json"), StateFilePath())
	assert.Equal(t, filepath.Join(root, "state", "agentwatch", "logs"), LogsDir())
	assert.Equal(t, filepath.Join(root, "state", "agentwatch", "agentwatch.pid"), PidFilePath())
	assert.Equal(t, filepath.Join(root, "state", "agentwatch", "agentwatch.sock"), SocketPath())
}

func TestXDGFallback(t *testing.T) {
	root := t.TempDir()
	t.Setenv("AGENTWATCH_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "cfg"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "st"))

	assert.Equal(t, filepath.Join(root, "cfg", "agentwatch"), ConfigDir())
	assert.Equal(t, filepath.Join(root, "st", "agentwatch"), StateDir())
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	t.Setenv("AGENTWATCH_HOME", root)

	assert.NoError(t, EnsureDirs())
	assert.DirExists(t, ConfigDir())
	assert.DirExists(t, LogsDir())
}
