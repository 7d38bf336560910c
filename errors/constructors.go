package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *AgentwatchError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *AgentwatchError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// LockBusy reports a lock marker held by a live process.
func LockBusy(path string, pid int) *AgentwatchError {
	return New(ErrCodeLockBusy, fmt.Sprintf("lock %s is held by PID %d", path, pid)).
		WithDetail("path", path).
		WithDetail("pid", pid)
}

// StateCorrupt reports an unparseable state file.
func StateCorrupt(path string, cause error) *AgentwatchError {
	return Wrap(cause, ErrCodeStateCorrupt, fmt.Sprintf("state file is not valid JSON: %s", path)).
		WithDetail("path", path)
}

// SettingsInvalid reports a hook settings document that cannot be parsed or has an unexpected shape.
func SettingsInvalid(path string, cause error) *AgentwatchError {
	return Wrap(cause, ErrCodeSettingsInvalid, fmt.Sprintf("settings file is invalid: %s", path)).
		WithDetail("path", path)
}

// WriteFailed reports a failed replace of a shared file.
func WriteFailed(path string, cause error) *AgentwatchError {
	return Wrap(cause, ErrCodeWriteFailed, fmt.Sprintf("failed to write %s", path)).
		WithDetail("path", path)
}

// AlreadyRunning reports a second consumer instance.
func AlreadyRunning(pid int) *AgentwatchError {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("agentwatch is already running with PID %d", pid)).
		WithDetail("pid", pid)
}
