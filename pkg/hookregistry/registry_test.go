package hookregistry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/agentwatch/pkg/dirlock"
	"github.com/grovetools/agentwatch/pkg/hookevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	reg     *Registry
	global  string
	project string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	project := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(project, 0755))
	global := filepath.Join(root, "home", ".claude", "settings.json")
	return fixture{
		reg: New(Options{
			GlobalSettings: global,
			LocalSettings:  ".claude/settings.local.json",
			Command:        "/usr/local/bin/agentwatch hook",
			Lock:           dirlock.Options{Retries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		}),
		global:  global,
		project: project,
	}
}

func readJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// markedCount counts marked commands under an event in either shape.
func markedCount(t *testing.T, doc map[string]interface{}, event string) int {
	t.Helper()
	hooks, _ := doc["hooks"].(map[string]interface{})
	list, _ := hooks[event].([]interface{})
	n := 0
	for _, item := range list {
		m := item.(map[string]interface{})
		if inner, ok := m["hooks"].([]interface{}); ok {
			for _, h := range inner {
				if strings.Contains(h.(map[string]interface{})["command"].(string), Marker) {
					n++
				}
			}
			continue
		}
		if cmd, ok := m["command"].(string); ok && strings.Contains(cmd, Marker) {
			n++
		}
	}
	return n
}

func TestRegisterCreatesGlobalSettings(t *testing.T) {
	f := newFixture(t)

	require.False(t, f.reg.HasRegistered(f.project))
	require.True(t, f.reg.Register(f.project))
	assert.True(t, f.reg.HasRegistered(f.project))

	doc := readJSON(t, f.global)
	for _, event := range hookevent.Names {
		assert.Equal(t, 1, markedCount(t, doc, event), event)

		group := doc["hooks"].(map[string]interface{})[event].([]interface{})[0].(map[string]interface{})
		assert.NotContains(t, group, "matcher")
		entry := group["hooks"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "command", entry["type"])
		assert.Equal(t, "/usr/local/bin/agentwatch hook --tag "+Marker, entry["command"])
	}

	_, err := os.Stat(dirlock.MarkerPath(f.global))
	assert.True(t, os.IsNotExist(err), "lock must be released")
}

func TestRegisterIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.reg.Register(f.project))
	first, err := os.ReadFile(f.global)
	require.NoError(t, err)

	require.True(t, f.reg.Register(f.project))
	second, err := os.ReadFile(f.global)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	doc := readJSON(t, f.global)
	for _, event := range hookevent.Names {
		assert.Equal(t, 1, markedCount(t, doc, event), event)
	}
}

func TestPartialRegistrationSelfHeals(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.reg.Register(f.project))

	doc := readJSON(t, f.global)
	delete(doc["hooks"].(map[string]interface{}), hookevent.Stop)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	writeFile(t, f.global, string(data))

	assert.False(t, f.reg.HasRegistered(f.project))
	require.True(t, f.reg.Register(f.project))
	assert.True(t, f.reg.HasRegistered(f.project))

	doc = readJSON(t, f.global)
	for _, event := range hookevent.Names {
		assert.Equal(t, 1, markedCount(t, doc, event), event)
	}
}

func TestRegisterPreservesUnrelatedContent(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.global, `{
  "model": "opus",
  "permissions": {"allow": ["Bash(ls:*)"]},
  "hooks": {
    "Stop": [
      {"matcher": "", "hooks": [{"type": "command", "command": "notify-send done && echo ok", "timeout": 30}]}
    ],
    "Notification": [
      {"hooks": [{"type": "command", "command": "say hi"}]}
    ]
  }
}`)

	require.True(t, f.reg.Register(f.project))

	raw, err := os.ReadFile(f.global)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timeout": 30`)
	assert.Contains(t, string(raw), "notify-send done && echo ok")

	doc := readJSON(t, f.global)
	assert.Equal(t, "opus", doc["model"])
	assert.Equal(t, []interface{}{"Bash(ls:*)"}, doc["permissions"].(map[string]interface{})["allow"])

	hooks := doc["hooks"].(map[string]interface{})
	stop := hooks["Stop"].([]interface{})
	require.Len(t, stop, 2)
	first := stop[0].(map[string]interface{})
	assert.Equal(t, "", first["matcher"])
	assert.Equal(t, "notify-send done && echo ok", first["hooks"].([]interface{})[0].(map[string]interface{})["command"])
	assert.Equal(t, 1, markedCount(t, doc, "Stop"))

	assert.Equal(t, []interface{}{
		map[string]interface{}{"hooks": []interface{}{map[string]interface{}{"type": "command", "command": "say hi"}}},
	}, hooks["Notification"])
}

func TestMatcherKeptAsFound(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.global, `{"hooks": {"Stop": [
  {"matcher": null, "hooks": [{"type": "command", "command": "null-matcher"}]},
  {"matcher": 7, "hooks": [{"type": "command", "command": "odd-matcher"}]},
  {"hooks": [{"type": "command", "command": "no-matcher"}]}
]}}`)

	require.True(t, f.reg.Register(f.project))
	f.reg.Remove(f.project)

	raw, err := os.ReadFile(f.global)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"matcher": null`)

	stop := readJSON(t, f.global)["hooks"].(map[string]interface{})["Stop"].([]interface{})
	require.Len(t, stop, 3)
	first := stop[0].(map[string]interface{})
	matcher, present := first["matcher"]
	assert.True(t, present)
	assert.Nil(t, matcher)
	assert.Equal(t, float64(7), stop[1].(map[string]interface{})["matcher"])
	assert.NotContains(t, stop[2].(map[string]interface{}), "matcher")
}

func TestLegacyShape(t *testing.T) {
	f := newFixture(t)
	legacy := `{"type": "command", "command": "/old/agentwatch hook --tag ` + Marker + `"}`
	var events []string
	for _, e := range hookevent.Names {
		events = append(events, `"`+e+`": [`+legacy+`, {"type": "command", "command": "other-tool"}]`)
	}
	writeFile(t, f.global, `{"hooks": {`+strings.Join(events, ",")+`}}`)

	assert.True(t, f.reg.HasRegistered(f.project), "legacy entries count as registered")
	require.True(t, f.reg.Register(f.project))
	doc := readJSON(t, f.global)
	assert.Equal(t, 1, markedCount(t, doc, hookevent.PreToolUse))

	f.reg.Remove(f.project)
	doc = readJSON(t, f.global)
	hooks := doc["hooks"].(map[string]interface{})
	for _, event := range hookevent.Names {
		assert.Equal(t, 0, markedCount(t, doc, event), event)
		// The unrelated legacy entry survives, rewritten as a group.
		assert.Equal(t, []interface{}{
			map[string]interface{}{"hooks": []interface{}{map[string]interface{}{"type": "command", "command": "other-tool"}}},
		}, hooks[event], event)
	}
}

func TestRemoveDeletesEmptyContainers(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.global, `{"theme": "dark"}`)
	require.True(t, f.reg.Register(f.project))

	f.reg.Remove(f.project)
	doc := readJSON(t, f.global)
	assert.Equal(t, map[string]interface{}{"theme": "dark"}, doc)
	assert.False(t, f.reg.HasRegistered(f.project))
}

func TestLocalSettingsPreferred(t *testing.T) {
	f := newFixture(t)
	local := filepath.Join(f.project, ".claude", "settings.local.json")
	writeFile(t, local, "{}")

	assert.Equal(t, local, f.reg.SettingsPath(f.project))
	require.True(t, f.reg.Register(f.project))
	assert.True(t, f.reg.HasRegistered(f.project))
	_, err := os.Stat(f.global)
	assert.True(t, os.IsNotExist(err), "global settings untouched")

	// Remove clears both files, whichever was used.
	require.True(t, New(Options{GlobalSettings: f.global, Command: "x"}).Register(f.project))
	f.reg.Remove(f.project)
	assert.Equal(t, map[string]interface{}{}, readJSON(t, local))
	assert.Equal(t, map[string]interface{}{}, readJSON(t, f.global))
}

func TestInvalidSettingsAreNeverOverwritten(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":      `{"hooks": {`,
		"not object":  `[1, 2]`,
		"hooks list":  `{"hooks": []}`,
		"event value": `{"hooks": {"Stop": "echo"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			writeFile(t, f.global, content)

			assert.False(t, f.reg.Register(f.project))
			assert.False(t, f.reg.HasRegistered(f.project))
			f.reg.Remove(f.project)

			data, err := os.ReadFile(f.global)
			require.NoError(t, err)
			assert.Equal(t, content, string(data))
		})
	}
}

func TestCommentsAndTrailingCommasAccepted(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.global, `{
  // personal settings
  "model": "sonnet",
}`)
	require.True(t, f.reg.Register(f.project))
	doc := readJSON(t, f.global)
	assert.Equal(t, "sonnet", doc["model"])
	assert.True(t, f.reg.HasRegistered(f.project))
}

func TestRegisterFailsWhenLocked(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.global, "{}")
	held, err := dirlock.Acquire(f.global, dirlock.DefaultOptions())
	require.NoError(t, err)
	defer held.Release()

	assert.False(t, f.reg.Register(f.project))
	assert.False(t, f.reg.HasRegistered(f.project))
}
