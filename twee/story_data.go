package twee

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// StoryData is the record extracted from the first non-empty StoryData
// passage, per spec.md §3.
type StoryData struct {
	Name          string            `json:"name,omitempty"`
	Ifid          string            `json:"ifid"`
	Format        string            `json:"format"`
	FormatVersion string            `json:"format-version"`
	Start         string            `json:"start,omitempty"`
	TagColors     map[string]string `json:"tag-colors,omitempty"`
	Zoom          float64           `json:"zoom,omitempty"`
}

// Warning is a recovered (non-fatal) build-time diagnostic, per the error
// taxonomy of spec.md §7.
type Warning struct {
	Kind    string
	Detail  string
	Source  string
	Line    int
}

func (w Warning) String() string {
	if w.Source != "" {
		return fmt.Sprintf("%s: %s (%s:%d)", w.Kind, w.Detail, w.Source, w.Line)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}

// Assemble normalizes one raw passage, produced by Tokenize, into the
// canonical Passage record.
func Assemble(raw RawPassage, sourceFile string) Passage {
	return Passage{
		Name:       raw.Name,
		Tags:       raw.Tags,
		Position:   raw.Position,
		Size:       raw.Size,
		Content:    raw.Body,
		SourceFile: sourceFile,
		SourceLine: raw.Line,
	}
}

// ResolveStoryData scans passages in file order (the order they were
// assembled across the FileCollector's deterministic file ordering) for the
// first non-empty StoryData passage, per spec.md §4.3's historical fix: a
// later file's StoryData must be considered if the first file has none.
//
// A JSON parse failure triggers a lenient fallback that string-scans for
// the recognized keys, recording the fallback as a debug-level warning
// rather than failing the build outright.
func ResolveStoryData(passages []Passage) (StoryData, []Warning, error) {
	var warnings []Warning
	for _, p := range passages {
		if p.Name != "StoryData" {
			continue
		}
		body := strings.TrimSpace(p.Content)
		if body == "" {
			continue
		}
		var sd StoryData
		if err := sonic.Unmarshal([]byte(body), &sd); err == nil {
			return sd, warnings, nil
		}
		sd, ok := lenientParseStoryData(body)
		if ok {
			warnings = append(warnings, Warning{
				Kind:   "StoryDataParseFailed",
				Detail: "recovered via lenient field scan",
				Source: p.SourceFile,
				Line:   p.SourceLine,
			})
			return sd, warnings, nil
		}
		return StoryData{}, warnings, fmt.Errorf("StoryDataParseFailed: %s:%d: malformed JSON and lenient scan failed", p.SourceFile, p.SourceLine)
	}
	return StoryData{}, warnings, fmt.Errorf("MissingStoryData: no passage named StoryData with a non-empty body was found")
}

// lenientParseStoryData string-scans a syntactically-broken StoryData body
// for the recognized keys, tolerating the unknown-field shapes some
// third-party tools (notably Harlowe-oriented editors) emit.
func lenientParseStoryData(body string) (StoryData, bool) {
	sd := StoryData{}
	found := false
	if v := extractQuotedField(body, "ifid"); v != "" {
		sd.Ifid = v
		found = true
	}
	if v := extractQuotedField(body, "format"); v != "" {
		sd.Format = v
		found = true
	}
	if v := extractQuotedField(body, "format-version"); v != "" {
		sd.FormatVersion = v
		found = true
	}
	if v := extractQuotedField(body, "start"); v != "" {
		sd.Start = v
		found = true
	}
	if v := extractQuotedField(body, "name"); v != "" {
		sd.Name = v
		found = true
	}
	if v := extractNumberField(body, "zoom"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			sd.Zoom = f
			found = true
		}
	}
	return sd, found
}

func extractNumberField(s, key string) string {
	needle := `"` + key + `"`
	idx := strings.Index(s, needle)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(needle):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[colon+1:])
	end := 0
	for end < len(rest) && (rest[end] == '.' || rest[end] == '-' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	return rest[:end]
}

// Validate checks the StoryData invariants of spec.md §3: ifid must be
// present and UUID-shaped.
func (sd StoryData) Validate() error {
	if sd.Ifid == "" {
		return fmt.Errorf("MissingIfid: StoryData has no ifid")
	}
	if _, err := uuid.Parse(sd.Ifid); err != nil {
		return fmt.Errorf("MissingIfid: ifid %q is not UUID-shaped: %w", sd.Ifid, err)
	}
	return nil
}

// ResolveStart implements the start-passage precedence chain of spec.md
// §4.3: CLI/config override → StoryData.start → passage literally named
// Start → failure.
func ResolveStart(passages map[string]Passage, override, storyDataStart string) (string, error) {
	candidates := []string{override, storyDataStart, "Start"}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		p, ok := passages[c]
		if !ok {
			continue
		}
		if Reserved(p.Name, p.Tags) {
			continue
		}
		return c, nil
	}
	return "", fmt.Errorf("MissingStartPassage: no override, StoryData.start, or literal Start passage resolved to an eligible passage")
}
