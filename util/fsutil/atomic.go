// Package fsutil holds filesystem helpers shared by the state store and the hook registry.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// renameFile is swapped in tests to exercise the fallback path.
var renameFile = os.Rename

// WriteFileAtomic replaces path with data using a sibling temporary file and a rename.
//
// If the rename fails the target is overwritten in place instead. The original
// is never removed first, so a reader always finds some version of the file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return writeInPlace(path, data, perm, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return writeInPlace(path, data, perm, fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return writeInPlace(path, data, perm, fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return writeInPlace(path, data, perm, fmt.Errorf("close temp file: %w", err))
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return writeInPlace(path, data, perm, fmt.Errorf("chmod temp file: %w", err))
	}

	if err := renameFile(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return writeInPlace(path, data, perm, fmt.Errorf("rename temp file: %w", err))
	}
	return nil
}

// writeInPlace is the fallback when the atomic path cannot be used.
func writeInPlace(path string, data []byte, perm os.FileMode, cause error) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("%v; direct write: %w", cause, err)
	}
	return nil
}
