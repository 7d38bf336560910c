package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CanonicalPath returns the absolute, symlink-free form of path with the case
// used on disk. A path that does not exist is returned absolute and cleaned.
// Agents report their working directory in this form, so directory arguments
// given on the command line must be resolved the same way to match.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		return resolved, nil
	}
	return diskCase(resolved), nil
}

// diskCase rebuilds path one component at a time from directory listings.
// EvalSymlinks keeps the caller's case on case-insensitive filesystems.
func diskCase(path string) string {
	result := filepath.VolumeName(path) + string(filepath.Separator)
	rest := strings.TrimPrefix(path, result)
	for _, part := range strings.Split(rest, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		name := part
		if entries, err := os.ReadDir(result); err == nil {
			for _, e := range entries {
				if strings.EqualFold(e.Name(), part) {
					name = e.Name()
					break
				}
			}
		}
		result = filepath.Join(result, name)
	}
	return result
}
