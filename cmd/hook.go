package cmd

import (
	"io"
	"time"

	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/config"
	"github.com/grovetools/agentwatch/logging"
	"github.com/grovetools/agentwatch/pkg/hookevent"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/pkg/profiling"
	"github.com/spf13/cobra"
)

// maxEventSize bounds how much of stdin a hook invocation reads.
const maxEventSize = 1 << 20

// NewHookCmd creates the `hook` command run by the agent for every hook event.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Record one hook event from stdin in the shared state file",
		Long: `Reads a single hook event as JSON from stdin, derives the session status
and records it in the shared state file.

The command never fails and never writes to stdout, so a broken or busy state
file cannot disturb the agent that invoked it. Problems are written to the log
file only.`,
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			runHook(cmd, cmd.InOrStdin(), time.Now())
			return nil
		},
	}
	cmd.Flags().String("tag", "", "Marker identifying entries installed by agentwatch")
	return cmd
}

func runHook(cmd *cobra.Command, in io.Reader, now time.Time) {
	logging.SetStderrMode("never")

	cfg, cfgErr := cli.LoadConfig(cmd)
	if cfgErr != nil {
		cfg = config.Default()
		logging.UseConfig(cfg)
	}
	logger := logging.NewLogger("hook")
	if cfgErr != nil {
		logger.WithError(cfgErr).Warn("Falling back to default config")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Hook aborted")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(in, maxEventSize))
	if err != nil {
		logger.WithError(err).Warn("Failed to read hook event")
		return
	}
	ev, err := hookevent.Parse(data)
	if err != nil {
		logger.WithError(err).Debug("Ignoring malformed hook event")
		return
	}
	if ev.SessionID == "" {
		logger.WithField("event", ev.HookEventName).Debug("Ignoring event without session id")
		return
	}

	res := hookevent.Derive(ev)
	log := logger.WithField("session", ev.SessionID).WithField("event", ev.HookEventName)
	if res.Action == hookevent.Ignore {
		log.Debug("Event does not change status")
		return
	}

	span := profiling.Start("hook.update")
	defer span.Stop()
	st := newStateStore(cfg, logger)
	if !st.Update(func(s *models.SharedState) bool {
		return hookevent.Apply(s, ev, now)
	}) {
		log.Warn("Dropped hook event")
		return
	}
	log.WithField("action", res.Action).Debug("Recorded hook event")
}
