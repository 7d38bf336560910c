package hookevent

import (
	"testing"
	"time"

	"github.com/grovetools/agentwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Result
	}{
		{"session start", Event{HookEventName: SessionStart}, Result{Set, models.StatusIdle}},
		{"prompt", Event{HookEventName: UserPromptSubmit}, Result{Set, models.StatusRunning}},
		{"ask user", Event{HookEventName: PreToolUse, ToolName: "AskUserQuestion"}, Result{Set, models.StatusPending}},
		{"other tool", Event{HookEventName: PreToolUse, ToolName: "Bash"}, Result{Set, models.StatusRunning}},
		{"permission", Event{HookEventName: PermissionRequest}, Result{Set, models.StatusPending}},
		{"post tool", Event{HookEventName: PostToolUse}, Result{Set, models.StatusRunning}},
		{"failure interrupted", Event{HookEventName: PostToolUseFailure, IsInterrupt: true}, Result{Set, models.StatusIdle}},
		{"failure", Event{HookEventName: PostToolUseFailure}, Result{Set, models.StatusRunning}},
		{"stop", Event{HookEventName: Stop}, Result{Set, models.StatusCompleted}},
		{"end", Event{HookEventName: SessionEnd}, Result{Action: Remove}},
		{"notification", Event{HookEventName: "Notification"}, Result{Action: Ignore}},
		{"empty", Event{}, Result{Action: Ignore}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.ev))
		})
	}
}

func TestApplySessionLifecycle(t *testing.T) {
	state := models.NewSharedState()
	start := time.Date(2026, 3, 1, 12, 0, 0, 500, time.FixedZone("x", 3600))

	steps := []struct {
		ev   Event
		want models.Status
	}{
		{Event{HookEventName: SessionStart}, models.StatusIdle},
		{Event{HookEventName: UserPromptSubmit}, models.StatusRunning},
		{Event{HookEventName: PreToolUse, ToolName: "AskUserQuestion"}, models.StatusPending},
		{Event{HookEventName: Stop}, models.StatusCompleted},
	}
	for i, step := range steps {
		step.ev.SessionID = "s1"
		step.ev.Cwd = "/p/a"
		now := start.Add(time.Duration(i) * time.Second)
		require.True(t, Apply(&state, step.ev, now))

		rec, ok := state.Sessions["s1"]
		require.True(t, ok)
		assert.Equal(t, step.want, rec.Status)
		assert.Equal(t, step.ev.HookEventName, rec.LastEvent)
		assert.Equal(t, models.Timestamp(now), rec.LastUpdated)
		assert.Equal(t, time.UTC, rec.LastUpdated.Location())
	}

	rec := state.Sessions["s1"]
	assert.Equal(t, "/p/a", rec.ProjectDir)
	assert.Equal(t, "a", rec.ProjectName)

	require.True(t, Apply(&state, Event{SessionID: "s1", HookEventName: SessionEnd}, start))
	assert.Empty(t, state.Sessions)
}

func TestApplyKeepsCreationFields(t *testing.T) {
	state := models.NewSharedState()
	now := time.Now()
	Apply(&state, Event{SessionID: "s1", HookEventName: SessionStart, Cwd: "/p/a"}, now)
	Apply(&state, Event{SessionID: "s1", HookEventName: UserPromptSubmit, Cwd: "/p/b"}, now)

	rec := state.Sessions["s1"]
	assert.Equal(t, "/p/a", rec.ProjectDir)
	assert.Equal(t, "a", rec.ProjectName)
}

func TestApplyNoChange(t *testing.T) {
	state := models.NewSharedState()
	now := time.Now()
	assert.False(t, Apply(&state, Event{SessionID: "s1", HookEventName: "Notification"}, now))
	assert.False(t, Apply(&state, Event{SessionID: "s1", HookEventName: SessionEnd}, now))
	assert.False(t, Apply(&state, Event{HookEventName: SessionStart}, now))
	assert.Empty(t, state.Sessions)
}

func TestParse(t *testing.T) {
	ev, err := Parse([]byte(`{"session_id":"abc","hook_event_name":"PostToolUseFailure","cwd":"/p/x","is_interrupt":true,"extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, Event{SessionID: "abc", HookEventName: PostToolUseFailure, Cwd: "/p/x", IsInterrupt: true}, ev)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestProjectName(t *testing.T) {
	assert.Equal(t, "repo", ProjectName("/home/me/repo"))
	assert.Equal(t, "repo", ProjectName("/home/me/repo/"))
	assert.Equal(t, models.UnknownProject, ProjectName(""))
	assert.Equal(t, models.UnknownProject, ProjectName("/"))
	assert.Equal(t, models.UnknownProject, ProjectName("Unknown"))
}
