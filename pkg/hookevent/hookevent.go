// Package hookevent turns a single agent lifecycle event into a change of the
// shared session state.
package hookevent

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/agentwatch/pkg/models"
)

// Event names delivered by the agent.
const (
	SessionStart       = "SessionStart"
	UserPromptSubmit   = "UserPromptSubmit"
	PreToolUse         = "PreToolUse"
	PermissionRequest  = "PermissionRequest"
	PostToolUse        = "PostToolUse"
	PostToolUseFailure = "PostToolUseFailure"
	Stop               = "Stop"
	SessionEnd         = "SessionEnd"
)

// Names lists every event name the writer must be registered for.
var Names = []string{
	SessionStart,
	UserPromptSubmit,
	PreToolUse,
	PermissionRequest,
	PostToolUse,
	PostToolUseFailure,
	Stop,
	SessionEnd,
}

// askUserTool is the tool whose use means the agent is waiting on the user.
const askUserTool = "AskUserQuestion"

// Event is the JSON object an agent passes to the writer on stdin.
// Unknown fields are ignored.
type Event struct {
	SessionID     string `json:"session_id"`
	HookEventName string `json:"hook_event_name"`
	Cwd           string `json:"cwd"`
	ToolName      string `json:"tool_name,omitempty"`
	IsInterrupt   bool   `json:"is_interrupt,omitempty"`
}

// Action is what a derivation asks the writer to do.
type Action int

const (
	// Ignore leaves the state untouched.
	Ignore Action = iota
	// Set records Result.Status for the session.
	Set
	// Remove deletes the session.
	Remove
)

func (a Action) String() string {
	switch a {
	case Set:
		return "set"
	case Remove:
		return "remove"
	default:
		return "ignore"
	}
}

// Result is the outcome of Derive.
type Result struct {
	Action Action
	Status models.Status
}

// Parse decodes an event. Missing fields decode to their zero values.
func Parse(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Derive maps an event to its status transition. It is total: unrecognized
// event names yield Ignore.
func Derive(ev Event) Result {
	set := func(s models.Status) Result { return Result{Action: Set, Status: s} }

	switch ev.HookEventName {
	case SessionStart:
		return set(models.StatusIdle)
	case UserPromptSubmit:
		return set(models.StatusRunning)
	case PreToolUse:
		if ev.ToolName == askUserTool {
			return set(models.StatusPending)
		}
		return set(models.StatusRunning)
	case PermissionRequest:
		return set(models.StatusPending)
	case PostToolUse:
		return set(models.StatusRunning)
	case PostToolUseFailure:
		if ev.IsInterrupt {
			return set(models.StatusIdle)
		}
		return set(models.StatusRunning)
	case Stop:
		return set(models.StatusCompleted)
	case SessionEnd:
		return Result{Action: Remove}
	}
	return Result{Action: Ignore}
}

// Apply folds ev into state using the derivation of Derive and reports
// whether state changed in a way that must be persisted.
//
// Existing records keep their id, directory and name; only status, last
// event and timestamp are replaced.
func Apply(state *models.SharedState, ev Event, now time.Time) bool {
	if ev.SessionID == "" {
		return false
	}
	res := Derive(ev)
	if state.Sessions == nil {
		state.Sessions = make(map[string]models.SessionRecord)
	}

	switch res.Action {
	case Remove:
		if _, ok := state.Sessions[ev.SessionID]; !ok {
			return false
		}
		delete(state.Sessions, ev.SessionID)
		return true
	case Set:
		rec, ok := state.Sessions[ev.SessionID]
		if !ok {
			rec = models.SessionRecord{
				ID:          ev.SessionID,
				ProjectDir:  ev.Cwd,
				ProjectName: ProjectName(ev.Cwd),
			}
		}
		rec.Status = res.Status
		rec.LastEvent = ev.HookEventName
		rec.LastUpdated = models.Timestamp(now)
		state.Sessions[ev.SessionID] = rec
		return true
	}
	return false
}

// ProjectName returns the display name of a project directory: its last path
// component, or models.UnknownProject for an empty or root directory.
func ProjectName(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == models.UnknownProject {
		return models.UnknownProject
	}
	base := filepath.Base(filepath.Clean(dir))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return models.UnknownProject
	}
	return base
}
