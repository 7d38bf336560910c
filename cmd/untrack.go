package cmd

import (
	"context"
	"fmt"

	"github.com/grovetools/agentwatch/cli"
	"github.com/spf13/cobra"
)

// NewUntrackCmd creates the `untrack` command.
func NewUntrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <session-id>",
		Short: "Stop tracking a session",
		Long: `Deletes a session from the state file. When no other tracked session
uses the same project directory, the directory's status hook is removed too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := newClient(cfg, cli.GetLogger(cmd, "untrack"))
			defer client.Close()

			if err := client.Untrack(context.Background(), args[0]); err != nil {
				return err
			}
			if client.IsRunning() {
				fmt.Fprintf(cmd.OutOrStdout(), "Asked agentwatch to untrack %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Untracked %s\n", args[0])
			}
			return nil
		},
	}
}
