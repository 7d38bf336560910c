// Package profiling provides opt-in CPU, heap and timing profiles for the
// agentwatch commands.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stopper ends a timed span.
type Stopper interface {
	Stop()
}

// Stat aggregates every span recorded under one name.
type Stat struct {
	Name  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Profiler aggregates timed spans by name.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	stats   map[string]*Stat
}

// New returns a disabled profiler.
func New() *Profiler {
	return &Profiler{stats: make(map[string]*Stat)}
}

var defaultProfiler = New()

// Enable turns on the global profiler.
func Enable() { defaultProfiler.Enable() }

// Start begins a span on the global profiler.
func Start(name string) Stopper { return defaultProfiler.Start(name) }

// Summarize writes the global profiler's summary to w.
func Summarize(w io.Writer) { defaultProfiler.Summarize(w) }

// Enable starts recording. Calling it again keeps the existing stats.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.started = time.Now()
}

// Start begins a span. The returned Stopper is safe to call from any goroutine.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	enabled := p.enabled
	p.mu.Unlock()
	if !enabled {
		return noopStopper{}
	}
	return &span{name: name, start: time.Now(), profiler: p}
}

// Stats returns the recorded spans ordered by total time, longest first.
func (p *Profiler) Stats() []Stat {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Stat, 0, len(p.stats))
	for _, s := range p.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Summarize writes one line per span name to w.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	enabled, elapsed := p.enabled, time.Since(p.started)
	p.mu.Unlock()
	if !enabled {
		return
	}

	fmt.Fprintf(w, "\n--- Timing Profile (%v) ---\n", elapsed.Round(time.Millisecond))
	for _, s := range p.Stats() {
		avg := s.Total / time.Duration(s.Count)
		fmt.Fprintf(w, "- %s: %d× total %v avg %v max %v\n", s.Name, s.Count,
			s.Total.Round(100*time.Microsecond), avg.Round(100*time.Microsecond), s.Max.Round(100*time.Microsecond))
	}
	fmt.Fprintln(w, "--------------------")
}

func (p *Profiler) record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stats[name]
	if !ok {
		s = &Stat{Name: name}
		p.stats[name] = s
	}
	s.Count++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

type span struct {
	name     string
	start    time.Time
	once     sync.Once
	profiler *Profiler
}

func (s *span) Stop() {
	s.once.Do(func() { s.profiler.record(s.name, time.Since(s.start)) })
}

type noopStopper struct{}

func (noopStopper) Stop() {}
