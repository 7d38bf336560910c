// Package cmd implements the agentwatch command line.
package cmd

import (
	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/pkg/profiling"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the agentwatch command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"agentwatch",
		"Track the status of coding agent sessions across projects",
	)
	root.Long = `agentwatch records the status of coding agent sessions in a shared state
file. Every agent process runs 'agentwatch hook' on its lifecycle events; one
'agentwatch run' consumer watches the file, tracks the most recent sessions
and installs hooks for new project directories.`

	profiling.NewCobraProfiler().AddFlags(root)

	root.AddCommand(NewHookCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewLabelsCmd())
	root.AddCommand(NewRegisterCmd())
	root.AddCommand(NewUnregisterCmd())
	root.AddCommand(NewRegisteredCmd())
	root.AddCommand(NewUntrackCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(cli.NewVersionCommand("agentwatch"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}
