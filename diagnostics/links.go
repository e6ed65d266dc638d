// Package diagnostics provides editor-tooling analyses over the parsed
// passage map: link extraction and reachability/path simulation. These are
// supplemental to the core build pipeline and never gate a build's success.
//
// Adapted from the link/literal extraction shape of the harlowe format
// parser and the path simulator in the teacher repo, re-scoped to be
// format-agnostic: the core pipeline never interprets story-format macros,
// so these analyses work only off the two bracket-link dialects common to
// Harlowe and SugarCube, not off full macro evaluation.
package diagnostics

import (
	"regexp"
	"strings"
)

// linkPattern matches [[Target]], [[Text|Target]], [[Text->Target]], and
// [[Target<-Text]] — the bracket-link dialects shared by Harlowe and
// SugarCube.
var linkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// ExtractLinks returns the passage-name targets of every bracket link found
// in content, in order of appearance.
func ExtractLinks(content string) []string {
	matches := linkPattern.FindAllStringSubmatch(content, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, linkTarget(m[1]))
	}
	return links
}

func linkTarget(inner string) string {
	switch {
	case strings.Contains(inner, "<-"):
		parts := strings.SplitN(inner, "<-", 2)
		return strings.TrimSpace(parts[0])
	case strings.Contains(inner, "->"):
		parts := strings.SplitN(inner, "->", 2)
		return strings.TrimSpace(parts[1])
	case strings.Contains(inner, "|"):
		parts := strings.Split(inner, "|")
		return strings.TrimSpace(parts[len(parts)-1])
	default:
		return strings.TrimSpace(inner)
	}
}

// macroAssignPattern matches the Harlowe (set: $var to value) shape and the
// SugarCube <<set $var = value>> shape, both of which appear often enough
// in real story sources to be worth a best-effort variable-name sweep for
// editor hints, without evaluating the expression.
var macroAssignPattern = regexp.MustCompile(`\(set:\s*\$(\w+)\s+to\s+([^)]+)\)|<<set\s+\$(\w+)\s*=\s*([^>]+)>>`)

// ExtractMacroVariables returns the variable names assigned in content
// mapped to their raw (unevaluated) right-hand-side text.
func ExtractMacroVariables(content string) map[string]string {
	vars := map[string]string{}
	for _, m := range macroAssignPattern.FindAllStringSubmatch(content, -1) {
		name, value := m[1], m[2]
		if name == "" {
			name, value = m[3], m[4]
		}
		if name != "" {
			vars[name] = strings.TrimSpace(value)
		}
	}
	return vars
}
