// Package logutil locates the log files written by agentwatch components.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovetools/agentwatch/config"
	"github.com/grovetools/agentwatch/logging"
	"github.com/grovetools/agentwatch/pkg/paths"
	"github.com/grovetools/agentwatch/util/pathutil"
)

// FindLogFile returns the log file to show for component. A file path set in
// the logging config wins; otherwise the newest matching file in the logs
// directory is used.
func FindLogFile(cfg *config.Config, component string) (string, error) {
	var logCfg logging.Config
	if cfg != nil {
		// A broken logging section falls back to the default location.
		_ = cfg.UnmarshalExtension("logging", &logCfg)
	}

	if logCfg.File.Path != "" {
		expanded, err := pathutil.Expand(logCfg.File.Path)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}
	return FindLatestLogFile(paths.LogsDir(), component)
}

// FindLatestLogFile finds the most recently modified log file for component
// in dir, or of any component when component is empty. Prefers files with
// content over empty files.
func FindLatestLogFile(dir, component string) (string, error) {
	pattern := "*.log"
	if component != "" {
		pattern = component + "-*.log"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}

	var latest, latestNonEmpty string
	var latestInfo, latestNonEmptyInfo os.FileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if latestInfo == nil || info.ModTime().After(latestInfo.ModTime()) {
			latest, latestInfo = m, info
		}
		if info.Size() > 0 && (latestNonEmptyInfo == nil || info.ModTime().After(latestNonEmptyInfo.ModTime())) {
			latestNonEmpty, latestNonEmptyInfo = m, info
		}
	}

	if latestNonEmpty != "" {
		return latestNonEmpty, nil
	}
	if latest == "" {
		return "", fmt.Errorf("no log files matching %s in %s", pattern, dir)
	}
	return latest, nil
}
