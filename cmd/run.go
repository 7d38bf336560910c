package cmd

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/config"
	"github.com/grovetools/agentwatch/internal/daemon/collector"
	"github.com/grovetools/agentwatch/internal/daemon/engine"
	"github.com/grovetools/agentwatch/internal/daemon/lifecycle"
	"github.com/grovetools/agentwatch/internal/daemon/pidfile"
	"github.com/grovetools/agentwatch/internal/daemon/server"
	"github.com/grovetools/agentwatch/internal/daemon/store"
	"github.com/grovetools/agentwatch/logging"
	"github.com/grovetools/agentwatch/pkg/consent"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/grovetools/agentwatch/pkg/paths"
	"github.com/grovetools/agentwatch/pkg/process"
	"github.com/grovetools/agentwatch/pkg/watcher"
	"github.com/grovetools/agentwatch/state"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the `run` command: the long-lived consumer.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch agent sessions and print them as they change",
		Long: `Runs the consumer in the foreground. It watches the shared state file,
discovers running agent processes, offers hook registration for new project
directories, evicts idle sessions and prints the tracked sessions whenever
they change.

Other agentwatch commands talk to it over a Unix socket in the state directory.

Examples:
  # Watch sessions, asking before installing hooks
  agentwatch run

  # Install hooks without asking and print snapshots as JSON lines
  agentwatch run --register auto --json`,
		RunE: runConsumer,
	}
	cmd.Flags().String("register", "", "Override registration.mode: ask, auto, never")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print snapshots")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

func runConsumer(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if mode, _ := cmd.Flags().GetString("register"); mode != "" {
		cfg.Registration.Mode = mode
	}
	logger := cli.GetLogger(cmd, "run")

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create agentwatch directories: %w", err)
	}

	pidPath := paths.PidFilePath()
	sockPath := paths.SocketPath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.WithError(err).Error("Failed to release pidfile")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateStore := newStateStore(cfg, logging.NewLogger("state"))
	ensureStateFile(stateStore)

	st := store.New()
	eng := engine.New(st, logger)

	mgr, err := lifecycle.New(lifecycle.Deps{
		State:      stateStore,
		Hooks:      newRegistry(cfg, logging.NewLogger("hooks")),
		Prompter:   consent.ForMode(cfg.Registration.Mode),
		Dispatcher: eng,
		Publisher:  st,
	}, lifecycle.Options{
		MaxTracked: cfg.MaxTracked,
		StaleAfter: cfg.StaleAfter.Duration,
		Ignore:     cfg.Discovery.Ignore,
		Logger:     logging.NewLogger("lifecycle"),
	})
	if err != nil {
		return fmt.Errorf("invalid discovery.ignore pattern: %w", err)
	}
	eng.Handle(mgr)

	eng.Register(collector.NewStateCollector(cfg.StatePath(), watcher.Options{
		SettleDelay:   cfg.Watch.SettleDelay.Duration,
		RetryInterval: cfg.Watch.OpenRetryInterval.Duration,
		RetryLimit:    cfg.Watch.OpenRetryLimit,
	}, logging.NewLogger("watcher")))
	eng.Register(collector.NewProcessCollector(
		process.NewDiscoverer(cfg.Discovery.ProcessNames...), cfg.PollInterval.Duration, logging.NewLogger("discovery")))
	eng.Register(collector.NewSweepCollector(cfg.SweepInterval.Duration))

	srv := server.New(logging.NewLogger("server"))
	srv.SetEngine(eng)
	srv.SetRunningConfig(runningConfig(cfg))
	go func() {
		if err := srv.ListenAndServe(sockPath); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Control socket unavailable")
		}
	}()

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		sub := st.Subscribe()
		defer st.Unsubscribe(sub)
		noColor, _ := cmd.Flags().GetBool("no-color")
		go printSnapshots(ctx, cmd.OutOrStdout(), sub, cli.GetOptions(cmd).JSONOutput, noColor)
	}

	logger.WithField("pid", os.Getpid()).WithField("state_file", cfg.StatePath()).Info("Watching agent sessions")
	eng.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	_ = os.Remove(sockPath)
	return nil
}

// ensureStateFile creates an empty state file if none exists yet, so the
// watcher has something to arm on.
func ensureStateFile(st *state.Store) {
	st.Update(func(*models.SharedState) bool {
		_, err := os.Stat(st.Path())
		return os.IsNotExist(err)
	})
}

func runningConfig(cfg *config.Config) *server.RunningConfig {
	return &server.RunningConfig{
		StateFile:     cfg.StatePath(),
		MaxTracked:    cfg.MaxTracked,
		StaleAfter:    cfg.StaleAfter.Duration,
		SweepInterval: cfg.SweepInterval.Duration,
		PollInterval:  cfg.PollInterval.Duration,
		StartedAt:     time.Now(),
	}
}

func printSnapshots(ctx context.Context, w io.Writer, sub <-chan store.Update, asJSON, noColor bool) {
	r := newStatusRenderer(w, noColor)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub:
			if !ok {
				return
			}
			snap, isSnap := u.Payload.(models.Snapshot)
			if !isSnap {
				continue
			}
			if asJSON {
				if data, err := json.Marshal(snap); err == nil {
					fmt.Fprintln(w, string(data))
				}
				continue
			}
			r.render(snap, time.Now())
			fmt.Fprintln(w)
		}
	}
}
