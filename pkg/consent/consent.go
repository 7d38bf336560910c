// Package consent asks whether agentwatch may install its status hook for a
// project directory.
package consent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Prompter obtains consent for one directory. It may block; callers run it
// off their main loop.
type Prompter interface {
	RequestConsent(dir string, pid int) bool
}

// Auto grants every request.
type Auto struct{}

// RequestConsent implements Prompter.
func (Auto) RequestConsent(string, int) bool { return true }

// Never refuses every request.
type Never struct{}

// RequestConsent implements Prompter.
func (Never) RequestConsent(string, int) bool { return false }

// Terminal asks on a terminal. Requests are serialized so prompts never interleave.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal returns a prompter reading answers from in and writing questions to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// RequestConsent implements Prompter. Only "y" or "yes" grants consent; EOF refuses.
func (t *Terminal) RequestConsent(dir string, pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "Agent process %d detected in %s.\nInstall the agentwatch status hook for it? [y/N] ", pid, dir)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(t.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// ForMode returns the prompter for a registration mode ("ask", "auto", "never").
// Asking falls back to refusing when stdin is not a terminal.
func ForMode(mode string) Prompter {
	switch mode {
	case "auto":
		return Auto{}
	case "never":
		return Never{}
	}
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewTerminal(os.Stdin, os.Stderr)
	}
	return Never{}
}
