package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/pkg/logging/logutil"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [component]",
		Short: "Show agentwatch log output",
		Long: `Prints the end of the configured log file, or of the newest log file in the
logs directory, optionally limited to one component (hook, run, lifecycle, watcher, ...).

Examples:
  # Last 50 lines of whatever logged most recently
  agentwatch logs

  # Follow what hook invocations are doing
  agentwatch logs hook -f`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			component := ""
			if len(args) == 1 {
				component = args[0]
			}
			path, err := logutil.FindLogFile(cfg, component)
			if err != nil {
				return err
			}
			follow, _ := cmd.Flags().GetBool("follow")
			lines, _ := cmd.Flags().GetInt("lines")
			return showLog(cmd.OutOrStdout(), path, lines, follow, cmd.Context().Done())
		},
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().IntP("lines", "n", 50, "Number of lines to show from the end of the log (0 for all)")
	return cmd
}

// showLog prints the last n lines of path and, when following, everything
// appended afterwards until done is closed.
func showLog(w io.Writer, path string, n int, follow bool, done <-chan struct{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		if line != "" {
			fmt.Fprintln(w, line)
		}
	}
	if !follow {
		return nil
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: int64(len(data)), Whence: io.SeekStart},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("cannot follow %s: %w", path, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-done:
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			fmt.Fprintln(w, line.Text)
		}
	}
}
