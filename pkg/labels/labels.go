// Package labels assigns short, collision-free labels to project directories.
package labels

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/grovetools/agentwatch/pkg/models"
)

// DisplayName returns the case-folded last path segment of dir. Empty, root
// and unknown directories share one sentinel name.
func DisplayName(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == models.UnknownProject {
		return strings.ToLower(models.UnknownProject)
	}
	base := filepath.Base(filepath.Clean(dir))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return strings.ToLower(models.UnknownProject)
	}
	return strings.ToLower(base)
}

// Assign maps every directory to a single-character label.
//
// Directories are grouped by the first character of their display name. A
// lone directory is labelled with that character. Within a larger group each
// directory gets the first alphanumeric character after the group's common
// prefix, or its own last alphanumeric character if its name is the prefix.
// Directories that still share a label are renumbered "1", "2", ... in path
// order, skipping labels that are already taken.
//
// The result depends only on the set of directories, not their order.
func Assign(dirs []string) map[string]string {
	unique := make(map[string]string, len(dirs))
	for _, d := range dirs {
		unique[d] = DisplayName(d)
	}

	groups := make(map[rune][]string)
	for dir, name := range unique {
		first := []rune(name)[0]
		groups[first] = append(groups[first], dir)
	}

	labels := make(map[string]string, len(unique))
	for first, members := range groups {
		if len(members) == 1 {
			labels[members[0]] = string(first)
			continue
		}
		names := make([][]rune, len(members))
		for i, dir := range members {
			names[i] = []rune(unique[dir])
		}
		prefix := commonPrefixLen(names)
		for i, dir := range members {
			labels[dir] = string(pick(names[i], prefix))
		}
	}

	resolveCollisions(labels)
	return labels
}

// pick chooses a member's label character given the group's prefix length.
func pick(name []rune, prefix int) rune {
	if len(name) <= prefix {
		for i := len(name) - 1; i >= 0; i-- {
			if isAlnum(name[i]) {
				return name[i]
			}
		}
		return name[len(name)-1]
	}
	for _, r := range name[prefix:] {
		if isAlnum(r) {
			return r
		}
	}
	return name[prefix]
}

func resolveCollisions(labels map[string]string) {
	byLabel := make(map[string][]string)
	for dir, label := range labels {
		byLabel[label] = append(byLabel[label], dir)
	}

	used := make(map[string]bool)
	var colliding []string
	for label, dirs := range byLabel {
		if len(dirs) > 1 {
			colliding = append(colliding, dirs...)
		} else {
			used[label] = true
		}
	}
	if len(colliding) == 0 {
		return
	}
	sort.Strings(colliding)

	n := 0
	for _, dir := range colliding {
		var label string
		for {
			n++
			label = strconv.Itoa(n)
			if !used[label] {
				break
			}
		}
		labels[dir] = label
	}
}

func commonPrefixLen(names [][]rune) int {
	if len(names) == 0 {
		return 0
	}
	n := len(names[0])
	for _, name := range names[1:] {
		if len(name) < n {
			n = len(name)
		}
		for i := 0; i < n; i++ {
			if name[i] != names[0][i] {
				n = i
				break
			}
		}
	}
	return n
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
