package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/errors"
	"github.com/spf13/cobra"
)

// NewRegisterCmd creates the `register` command.
func NewRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [dir]",
		Short: "Install the status hook for a project directory",
		Long: `Adds the agentwatch status hook to every hook event in the settings file
that applies to the directory: the project-local file if it exists, otherwise
the global one. Entries already present are left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := projectDir(args)
			if err != nil {
				return err
			}
			reg := newRegistry(cfg, cli.GetLogger(cmd, "hooks"))
			if !reg.Register(dir) {
				return errors.New(errors.ErrCodeWriteFailed, "hook registration failed, see 'agentwatch logs' for details").
					WithDetail("path", reg.SettingsPath(dir))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n", dir, reg.SettingsPath(dir))
			return nil
		},
	}
}

// NewUnregisterCmd creates the `unregister` command.
func NewUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister [dir]",
		Short: "Remove the status hook for a project directory",
		Long: `Removes agentwatch entries from the project-local and the global settings
files. Unrelated entries are preserved.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := projectDir(args)
			if err != nil {
				return err
			}
			newRegistry(cfg, cli.GetLogger(cmd, "hooks")).Remove(dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Unregistered %s\n", dir)
			return nil
		},
	}
}

type registrationStatus struct {
	Dir        string `json:"dir"`
	Registered bool   `json:"registered"`
	Settings   string `json:"settings"`
}

// NewRegisteredCmd creates the `registered` command.
func NewRegisteredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registered [dir]",
		Short: "Report whether the status hook is installed for a project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := projectDir(args)
			if err != nil {
				return err
			}
			reg := newRegistry(cfg, cli.GetLogger(cmd, "hooks"))
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(registrationStatus{
					Dir:        dir,
					Registered: reg.HasRegistered(dir),
					Settings:   reg.SettingsPath(dir),
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if reg.HasRegistered(dir) {
				fmt.Fprintf(cmd.OutOrStdout(), "yes (%s)\n", reg.SettingsPath(dir))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no")
			}
			return nil
		},
	}
}
