package hookregistry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/grovetools/agentwatch/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"
)

// document is a settings file. Keys other than "hooks" are carried through untouched.
type document map[string]interface{}

// elementKind tags the shapes an event list element can take on disk.
type elementKind int

const (
	// kindGroup is the current shape: {"matcher": ..., "hooks": [{type, command}]}.
	kindGroup elementKind = iota
	// kindLegacy is the older flat shape: {"type": ..., "command": ...}.
	kindLegacy
	// kindOpaque is anything else; it is written back verbatim.
	kindOpaque
)

type hookEntry struct {
	Type    string                 `mapstructure:"type"`
	Command string                 `mapstructure:"command"`
	Extra   map[string]interface{} `mapstructure:",remain"`
}

type matcherGroup struct {
	// Matcher is kept as found, including an explicit null.
	Matcher interface{}            `mapstructure:"matcher"`
	Hooks   []hookEntry            `mapstructure:"hooks"`
	Extra   map[string]interface{} `mapstructure:",remain"`

	hasMatcher bool
}

// element is one item of an event's list after normalization. Legacy items
// are lifted into a group without a matcher, so only kindGroup and
// kindOpaque survive parseEvent.
type element struct {
	kind  elementKind
	group matcherGroup
	raw   interface{}
}

// loadDocument reads a settings file. A missing or blank file is an empty
// document. Comments and trailing commas are accepted.
func loadDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return nil, errors.SettingsInvalid(path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return document{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.SettingsInvalid(path, err)
	}
	doc, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.SettingsInvalid(path, fmt.Errorf("top level is %T, not an object", raw))
	}
	return document(doc), nil
}

// encode renders the document with stable key order and without HTML escaping,
// so shell operators in commands stay readable.
func (d document) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}(d)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// hooks returns the "hooks" object, or nil if absent.
func (d document) hooks(path string) (map[string]interface{}, error) {
	v, ok := d["hooks"]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.SettingsInvalid(path, fmt.Errorf("hooks is %T, not an object", v))
	}
	return m, nil
}

// parseEvent normalizes an event's list into elements.
func parseEvent(path, event string, v interface{}) ([]element, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, errors.SettingsInvalid(path, fmt.Errorf("hooks.%s is %T, not a list", event, v))
	}

	out := make([]element, 0, len(items))
	for _, item := range items {
		out = append(out, parseElement(item))
	}
	return out, nil
}

func parseElement(item interface{}) element {
	m, ok := item.(map[string]interface{})
	if !ok {
		return element{kind: kindOpaque, raw: item}
	}

	if _, isGroup := m["hooks"].([]interface{}); isGroup {
		var g matcherGroup
		if err := decode(m, &g); err != nil {
			return element{kind: kindOpaque, raw: item}
		}
		_, g.hasMatcher = m["matcher"]
		return element{kind: kindGroup, group: g}
	}

	if _, isLegacy := m["command"]; isLegacy {
		var e hookEntry
		if err := decode(m, &e); err != nil {
			return element{kind: kindOpaque, raw: item}
		}
		return element{kind: kindGroup, group: matcherGroup{Hooks: []hookEntry{e}}}
	}

	return element{kind: kindOpaque, raw: item}
}

func decode(input interface{}, target interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// encodeEvent writes elements back in the current shape.
func encodeEvent(elems []element) []interface{} {
	out := make([]interface{}, 0, len(elems))
	for _, el := range elems {
		if el.kind == kindOpaque {
			out = append(out, el.raw)
			continue
		}
		out = append(out, el.group.encode())
	}
	return out
}

func (g matcherGroup) encode() map[string]interface{} {
	m := make(map[string]interface{}, len(g.Extra)+2)
	for k, v := range g.Extra {
		m[k] = v
	}
	if g.hasMatcher {
		m["matcher"] = g.Matcher
	}
	hooks := make([]interface{}, 0, len(g.Hooks))
	for _, h := range g.Hooks {
		hooks = append(hooks, h.encode())
	}
	m["hooks"] = hooks
	return m
}

func (h hookEntry) encode() map[string]interface{} {
	m := make(map[string]interface{}, len(h.Extra)+2)
	for k, v := range h.Extra {
		m[k] = v
	}
	if h.Type != "" {
		m["type"] = h.Type
	}
	m["command"] = h.Command
	return m
}

// hasMarker reports whether any entry in elems carries marker.
func hasMarker(elems []element, marker string) bool {
	for _, el := range elems {
		if el.kind != kindGroup {
			continue
		}
		for _, h := range el.group.Hooks {
			if strings.Contains(h.Command, marker) {
				return true
			}
		}
	}
	return false
}

// withoutMarker drops entries carrying marker, and groups left empty by that.
// It reports whether anything was removed.
func withoutMarker(elems []element, marker string) ([]element, bool) {
	out := make([]element, 0, len(elems))
	removed := false
	for _, el := range elems {
		if el.kind != kindGroup {
			out = append(out, el)
			continue
		}
		kept := make([]hookEntry, 0, len(el.group.Hooks))
		for _, h := range el.group.Hooks {
			if strings.Contains(h.Command, marker) {
				removed = true
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 && len(el.group.Hooks) > 0 {
			continue
		}
		el.group.Hooks = kept
		out = append(out, el)
	}
	return out, removed
}
