package process

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, IsProcessAlive(os.Getpid()))
	assert.False(t, IsProcessAlive(0))
	assert.False(t, IsProcessAlive(-1))
	// Larger than any pid_max the kernel allows.
	assert.False(t, IsProcessAlive(1<<30))
}

func TestMatchCommandLine(t *testing.T) {
	names := map[string]bool{"claude": true}

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"global install", []string{"node", "/usr/local/lib/node_modules/@anthropic-ai/claude-code/cli.js"}, true},
		{"bin shim", []string{"node", "/home/u/.npm/bin/claude"}, true},
		{"package dir", []string{"node", "/opt/claude/cli.js"}, true},
		{"npx shim skipped", []string{"node", "/p/node_modules/.bin/claude"}, false},
		{"script named after agent", []string{"node", "/home/u/bin/claude.js", "--resume"}, true},
		{"unrelated", []string{"node", "server.js"}, false},
		{"name inside other project", []string{"node", "/home/u/src/claude-status-bar/server.js"}, false},
		{"name inside argument", []string{"node", "app.js", "--title=claude"}, false},
		{"no args", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchCommandLine(tt.args, names))
		})
	}
}

func TestDiscoverExcludesSelf(t *testing.T) {
	d := NewDiscoverer("definitely-not-a-real-agent-binary")
	procs, err := d.Discover(context.Background())
	require.NoError(t, err)
	for _, p := range procs {
		assert.NotEqual(t, os.Getpid(), p.PID)
	}
}
