// Package twee implements the Twee 3 tokenizer, passage assembler, and
// story-data resolver: the part of the pipeline that turns raw source text
// into the canonical in-memory story model.
package twee

import "strings"

// Passage is a single named unit of story content, normalized from the raw
// header/body pair the tokenizer produced.
type Passage struct {
	Name       string
	Tags       []string
	Position   string
	Size       string
	Content    string
	SourceFile string
	SourceLine int
}

// reservedNames is the SugarCube-oriented reserved passage list (spec.md §3
// invariant 4). These passages are never eligible to be the start passage,
// and the HTML emitter leaves them out of the <tw-passagedata> set.
var reservedNames = map[string]bool{
	"StoryTitle":    true,
	"StoryData":     true,
	"StoryIncludes": true,
	"StoryInit":     true,
	"StorySettings": true,
	"PassageReady":  true,
	"PassageHeader": true,
	"PassageFooter": true,
	"PassageDone":   true,
	"StoryBanner":   true,
	"StoryCaption":  true,
	"StoryMenu":     true,
	"StoryShare":    true,
	"StorySubtitle": true,
	"StoryAuthor":   true,
}

// Reserved reports whether a passage is ineligible for start-passage
// selection, either by name or by carrying the Twine.private tag.
func Reserved(name string, tags []string) bool {
	if reservedNames[name] {
		return true
	}
	for _, t := range tags {
		if t == "Twine.private" {
			return true
		}
	}
	return false
}

// HasTag reports whether a passage carries the given tag.
func (p Passage) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// normalizeContent implements the content normalization rule of spec.md §3:
// newlines normalized to "\n", trailing per-line whitespace trimmed,
// leading/trailing blank lines of the body stripped while interior blank
// lines are preserved. The result carries no trailing newline.
func normalizeContent(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}
	lines = lines[start:end]
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}
