// Package paths provides XDG-compliant path resolution for agentwatch.
//
// Resolution order:
// 1. AGENTWATCH_HOME (portable root) → $AGENTWATCH_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/agentwatch
// 3. Platform defaults → ~/.config/agentwatch, ~/.local/state/agentwatch
package paths

import (
	"os"
	"path/filepath"
)

const appName = "agentwatch"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("AGENTWATCH_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("AGENTWATCH_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the agentwatch configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the agentwatch state directory.
// Used for the shared session file, logs and the pid file.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogsDir returns the directory holding per-component log files.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// StateFilePath returns the default path of the shared session state file.
func StateFilePath() string {
	return filepath.Join(StateDir(), "sessions.json")
}

// PidFilePath returns the path to the consumer's PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "agentwatch.pid")
}

// SocketPath returns the path of the consumer's control socket.
func SocketPath() string {
	return filepath.Join(StateDir(), "agentwatch.sock")
}

// ClaudeGlobalSettings returns the default global hook settings document.
func ClaudeGlobalSettings() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".claude", "settings.json")
	}
	return ""
}

// EnsureDirs creates all agentwatch directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogsDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
