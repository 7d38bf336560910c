// Package pidfile keeps a single consumer instance per state directory.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grovetools/agentwatch/errors"
	"github.com/grovetools/agentwatch/pkg/process"
	"github.com/grovetools/agentwatch/util/fsutil"
)

// Acquire writes the current PID to the file.
// It returns an ALREADY_RUNNING error if another live instance holds it.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	self := os.Getpid()
	if pid, err := Read(path); err == nil && pid != self {
		if process.IsProcessAlive(pid) {
			return errors.AlreadyRunning(pid)
		}
		// Process is dead, cleanup stale file
		_ = os.Remove(path)
	}

	if err := fsutil.WriteFileAtomic(path, []byte(strconv.Itoa(self)+"\n"), 0o644); err != nil {
		return errors.WriteFailed(path, err)
	}
	return nil
}

// Release removes the PID file if it still names this process.
func Release(path string) error {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read returns the PID stored in the file.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning checks if the consumer described by the pidfile is active.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return process.IsProcessAlive(pid), pid, nil
}
