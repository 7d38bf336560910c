package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/agentwatch/cli"
	"github.com/grovetools/agentwatch/logging"
	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the `status` command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked agent sessions",
		Long: `Prints the tracked sessions with their labels and status. The running
consumer is asked when available; otherwise the state file is read directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := newClient(cfg, logging.NewLogger("status"))
			defer client.Close()

			snap, err := client.Snapshot(context.Background())
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			noColor, _ := cmd.Flags().GetBool("no-color")
			newStatusRenderer(cmd.OutOrStdout(), noColor).render(snap, time.Now())
			return nil
		},
	}
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

type statusRenderer struct {
	w      io.Writer
	label  lipgloss.Style
	muted  lipgloss.Style
	status map[models.Status]lipgloss.Style
}

func newStatusRenderer(w io.Writer, noColor bool) *statusRenderer {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	pad := r.NewStyle().Width(9)
	return &statusRenderer{
		w:     w,
		label: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		muted: r.NewStyle().Foreground(lipgloss.Color("8")),
		status: map[models.Status]lipgloss.Style{
			models.StatusRunning:   pad.Foreground(lipgloss.Color("10")),
			models.StatusPending:   pad.Foreground(lipgloss.Color("11")).Bold(true),
			models.StatusCompleted: pad.Foreground(lipgloss.Color("12")),
			models.StatusIdle:      pad.Foreground(lipgloss.Color("8")),
		},
	}
}

func (r *statusRenderer) render(snap models.Snapshot, now time.Time) {
	if len(snap.Sessions) == 0 {
		fmt.Fprintln(r.w, r.muted.Render("No tracked sessions"))
		return
	}
	for _, s := range snap.Sessions {
		st, ok := r.status[s.Status]
		if !ok {
			st = r.muted.Width(9)
		}
		fmt.Fprintf(r.w, "%s %s %-20s %s %s\n",
			r.label.Render("["+s.Label+"]"),
			st.Render(string(s.Status)),
			s.ProjectName,
			r.muted.Render(ago(now.Sub(s.LastUpdated))),
			r.muted.Render(s.ProjectDir),
		)
	}
}

// ago formats a duration as a short relative age.
func ago(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
