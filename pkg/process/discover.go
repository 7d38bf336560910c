package process

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/agentwatch/pkg/models"
	gops "github.com/shirou/gopsutil/v3/process"
)

// Discoverer lists the agent processes currently running on the machine.
type Discoverer interface {
	Discover(ctx context.Context) ([]models.DetectedProcess, error)
}

// SystemDiscoverer finds agent processes by executable name using gopsutil.
type SystemDiscoverer struct {
	names     map[string]bool
	skipUnder string
	self      int
}

// NewDiscoverer creates a SystemDiscoverer matching the given executable names.
func NewDiscoverer(names ...string) *SystemDiscoverer {
	if len(names) == 0 {
		names = []string{"claude"}
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	d := &SystemDiscoverer{names: set, self: os.Getpid()}
	if home, err := os.UserHomeDir(); err == nil {
		d.skipUnder = filepath.Join(home, ".claude")
	}
	return d
}

// Discover returns one DetectedProcess per matching process with a known working directory,
// ordered by PID.
func (d *SystemDiscoverer) Discover(ctx context.Context) ([]models.DetectedProcess, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var results []models.DetectedProcess
	for _, p := range procs {
		pid := int(p.Pid)
		if pid == d.self {
			continue
		}
		if !d.matches(ctx, p) {
			continue
		}

		cwd, err := p.CwdWithContext(ctx)
		if err != nil || cwd == "" {
			continue
		}
		// The agent's own helper processes run inside its config directory.
		if d.skipUnder != "" && (cwd == d.skipUnder || strings.HasPrefix(cwd, d.skipUnder+string(filepath.Separator))) {
			continue
		}

		results = append(results, models.DetectedProcess{PID: pid, ProjectDir: cwd})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].PID < results[j].PID })
	return results, nil
}

func (d *SystemDiscoverer) matches(ctx context.Context, p *gops.Process) bool {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return false
	}
	if d.names[name] {
		return true
	}

	// Node-hosted installs show up as "node <path>/claude ..."
	if name != "node" {
		return false
	}
	args, err := p.CmdlineSliceWithContext(ctx)
	if err != nil {
		return false
	}
	return MatchCommandLine(args, d.names)
}

// MatchCommandLine reports whether a node command line launches one of the
// named agents. An argument matches when one of its path segments, without
// extension, is a name or the name's "-code" package.
func MatchCommandLine(args []string, names map[string]bool) bool {
	for _, arg := range args[min(1, len(args)):] {
		if strings.Contains(arg, "node_modules/.bin") {
			continue
		}
		for _, seg := range strings.Split(filepath.ToSlash(arg), "/") {
			seg = strings.TrimSuffix(seg, filepath.Ext(seg))
			if names[seg] || names[strings.TrimSuffix(seg, "-code")] {
				return true
			}
		}
	}
	return false
}
