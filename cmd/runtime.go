package cmd

import (
	"fmt"

	"github.com/grovetools/agentwatch/config"
	"github.com/grovetools/agentwatch/pkg/daemon"
	"github.com/grovetools/agentwatch/pkg/dirlock"
	"github.com/grovetools/agentwatch/pkg/hookregistry"
	"github.com/grovetools/agentwatch/pkg/paths"
	"github.com/grovetools/agentwatch/state"
	"github.com/grovetools/agentwatch/util/pathutil"
	"github.com/sirupsen/logrus"
)

func lockOptions(cfg *config.Config, logger *logrus.Entry) dirlock.Options {
	return dirlock.Options{
		Retries:        cfg.Lock.Retries,
		InitialBackoff: cfg.Lock.InitialBackoff.Duration,
		MaxBackoff:     cfg.Lock.MaxBackoff.Duration,
		Logger:         logger,
	}
}

func newStateStore(cfg *config.Config, logger *logrus.Entry) *state.Store {
	return state.New(cfg.StatePath(),
		state.WithLockOptions(lockOptions(cfg, logger)),
		state.WithLogger(logger))
}

func newRegistry(cfg *config.Config, logger *logrus.Entry) *hookregistry.Registry {
	return hookregistry.New(hookregistry.Options{
		GlobalSettings: cfg.GlobalSettingsPath(),
		LocalSettings:  cfg.Registration.LocalSettings,
		Command:        cfg.HookCommand(),
		Lock:           lockOptions(cfg, logger),
		Logger:         logger,
	})
}

// newClient talks to a running consumer, or works on the files directly.
func newClient(cfg *config.Config, logger *logrus.Entry) daemon.Client {
	local := daemon.NewLocalClient(newStateStore(cfg, logger), newRegistry(cfg, logger), cfg.MaxTracked)
	return daemon.New(paths.SocketPath(), local)
}

// projectDir resolves a directory argument, defaulting to the working directory.
func projectDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 && args[0] != "" {
		expanded, err := pathutil.Expand(args[0])
		if err != nil {
			return "", err
		}
		dir = expanded
	}
	canonical, err := pathutil.CanonicalPath(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return canonical, nil
}
