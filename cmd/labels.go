package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/pkg/labels"
	"github.com/spf13/cobra"
)

// NewLabelsCmd creates the `labels` command.
func NewLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels <dir>...",
		Short: "Print the labels assigned to a set of project directories",
		Long: `Prints the short label each directory would get if all of them were
tracked together.

Examples:
  agentwatch labels ~/src/alpha ~/src/app-one ~/src/app-two`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := make([]string, 0, len(args))
			for _, a := range args {
				dir, err := projectDir([]string{a})
				if err != nil {
					return err
				}
				dirs = append(dirs, dir)
			}
			assigned := labels.Assign(dirs)

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(assigned, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			sorted := append([]string{}, dirs...)
			sort.Strings(sorted)
			for _, dir := range sorted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", assigned[dir], dir)
			}
			return nil
		},
	}
}
