package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the files and directories agentwatch uses.
type PathsOutput struct {
	ConfigDir      string `json:"config_dir"`
	StateDir       string `json:"state_dir"`
	LogsDir        string `json:"logs_dir"`
	StateFile      string `json:"state_file"`
	PidFile        string `json:"pid_file"`
	Socket         string `json:"socket"`
	GlobalSettings string `json:"global_settings"`
}

// NewPathsCmd creates the `paths` command.
func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by agentwatch",
		Long: `Print the paths used by agentwatch as JSON.

Directories follow AGENTWATCH_HOME, then XDG_CONFIG_HOME and XDG_STATE_HOME,
then the platform defaults. state_file and global_settings reflect the
loaded configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			output := PathsOutput{
				ConfigDir:      paths.ConfigDir(),
				StateDir:       paths.StateDir(),
				LogsDir:        paths.LogsDir(),
				StateFile:      cfg.StatePath(),
				PidFile:        paths.PidFilePath(),
				Socket:         paths.SocketPath(),
				GlobalSettings: cfg.GlobalSettingsPath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
			return nil
		},
	}

	return cmd
}
