// Package format locates and loads story-format envelope files
// (format.js), extracting the JSON object argument of their
// window.storyFormat(...) call without executing any JavaScript.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Info is the StoryFormatInfo record of spec.md §3: name, version, and the
// full envelope JavaScript source.
type Info struct {
	Name    string
	Version string
	Source  string
}

// Load locates story-format/<name-lower>-<version>/format.js under execDir
// and parses its envelope.
func Load(execDir, name, version string) (Info, error) {
	dir := filepath.Join(execDir, "story-format", strings.ToLower(name)+"-"+version)
	path := filepath.Join(dir, "format.js")
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("FormatNotFound(%s): %w", path, err)
	}
	info, err := ParseEnvelope(string(data))
	if err != nil {
		return Info{}, err
	}
	if info.Name == "" {
		info.Name = name
	}
	if info.Version == "" {
		info.Version = version
	}
	return info, nil
}

// ParseEnvelope extracts the JSON-object argument of a storyFormat(...)
// call, per spec.md §4.4: it locates the outermost balanced "{...}" after
// the first occurrence of "storyFormat(" and parses it as JSON, with a
// tolerant fallback that retains at minimum the "source" field when strict
// JSON parsing fails (Harlowe's envelope, for example, includes a trailing
// function value that is not valid JSON).
func ParseEnvelope(jsSource string) (Info, error) {
	idx := strings.Index(jsSource, "storyFormat(")
	if idx < 0 {
		return Info{}, fmt.Errorf("FormatMalformed: no storyFormat( call found")
	}
	rest := jsSource[idx+len("storyFormat("):]
	braceStart := strings.IndexByte(rest, '{')
	if braceStart < 0 {
		return Info{}, fmt.Errorf("FormatMalformed: no JSON object argument found")
	}
	objText, err := extractBalancedBraces(rest[braceStart:])
	if err != nil {
		return Info{}, fmt.Errorf("FormatMalformed: %w", err)
	}

	var strict struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Source  string `json:"source"`
	}
	if err := sonic.Unmarshal([]byte(objText), &strict); err == nil && strict.Source != "" {
		return Info{Name: strict.Name, Version: strict.Version, Source: strict.Source}, nil
	}

	fields, err := parseJSObject(objText)
	if err != nil {
		return Info{}, fmt.Errorf("FormatMalformed: %w", err)
	}
	source, ok := fields["source"]
	if !ok || source == "" {
		return Info{}, fmt.Errorf("FormatSourceMissing: envelope has no usable source field")
	}
	return Info{Name: fields["name"], Version: fields["version"], Source: source}, nil
}

// extractBalancedBraces returns the outermost balanced {...} block starting
// at s[0] == '{', honoring quoted strings so that braces inside JS string
// literals don't unbalance the scan.
func extractBalancedBraces(s string) (string, error) {
	if len(s) == 0 || s[0] != '{' {
		return "", fmt.Errorf("expected '{' at start")
	}
	depth := 0
	inString := false
	var delim byte
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"' || ch == '\'' || ch == '`':
			if inString {
				if ch == delim {
					inString = false
				}
			} else {
				inString = true
				delim = ch
			}
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced braces in envelope")
}

// parseJSObject is a tolerant hand-rolled JS-object-literal field scanner,
// ported from the original's skip.rs: it keeps string-valued top-level
// fields and skips (rather than fails on) numbers, bools, functions, nested
// arrays/objects, and template strings it doesn't need to interpret.
func parseJSObject(s string) (map[string]string, error) {
	fields := map[string]string{}
	i := 0
	n := len(s)
	// skip the opening brace
	i = skipWhitespaceAndComma(s, i+1)
	for i < n && s[i] != '}' {
		key, next, err := parseJSKey(s, i)
		if err != nil {
			return fields, nil // tolerant: stop scanning, keep what we have
		}
		i = skipWhitespace(s, next)
		if i >= n || s[i] != ':' {
			return fields, nil
		}
		i = skipWhitespace(s, i+1)
		val, next, isString := parseJSValue(s, i)
		if isString {
			fields[key] = val
		}
		i = skipWhitespaceAndComma(s, next)
	}
	return fields, nil
}

func skipWhitespace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func skipWhitespaceAndComma(s string, i int) int {
	i = skipWhitespace(s, i)
	for i < len(s) && s[i] == ',' {
		i = skipWhitespace(s, i+1)
	}
	return i
}

// parseJSKey parses a quoted or bare object key starting at s[i].
func parseJSKey(s string, i int) (key string, next int, err error) {
	i = skipWhitespace(s, i)
	if i >= len(s) {
		return "", i, fmt.Errorf("eof")
	}
	if s[i] == '"' || s[i] == '\'' {
		delim := s[i]
		j := i + 1
		var b strings.Builder
		for j < len(s) && s[j] != delim {
			if s[j] == '\\' && j+1 < len(s) {
				b.WriteByte(s[j+1])
				j += 2
				continue
			}
			b.WriteByte(s[j])
			j++
		}
		return b.String(), j + 1, nil
	}
	j := i
	for j < len(s) && (isIdentRune(s[j])) {
		j++
	}
	if j == i {
		return "", i, fmt.Errorf("no key found")
	}
	return s[i:j], j, nil
}

func isIdentRune(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// parseJSValue parses a single JS value at s[i]: strings are returned with
// isString=true and the decoded content; everything else (numbers, bools,
// functions, arrays, objects, template strings) is skipped and isString is
// false, since the envelope format only ever needs string-valued fields.
func parseJSValue(s string, i int) (value string, next int, isString bool) {
	if i >= len(s) {
		return "", i, false
	}
	switch s[i] {
	case '"', '\'':
		delim := s[i]
		j := i + 1
		var b strings.Builder
		for j < len(s) && s[j] != delim {
			if s[j] == '\\' && j+1 < len(s) {
				b.WriteByte(s[j+1])
				j += 2
				continue
			}
			b.WriteByte(s[j])
			j++
		}
		return b.String(), j + 1, true
	case '`':
		return "", skipTemplateString(s, i), false
	case '{':
		return "", skipBalanced(s, i, '{', '}'), false
	case '[':
		return "", skipBalanced(s, i, '[', ']'), false
	case 't', 'f', 'n':
		// true / false / null
		j := i
		for j < len(s) && isIdentRune(s[j]) {
			j++
		}
		return "", j, false
	default:
		if isFunctionStart(s, i) {
			return "", skipFunctionLiteral(s, i), false
		}
		j := i
		for j < len(s) && (s[j] == '-' || s[j] == '.' || s[j] == 'e' || s[j] == 'E' || s[j] == '+' || (s[j] >= '0' && s[j] <= '9')) {
			j++
		}
		if j > i {
			if _, err := strconv.ParseFloat(s[i:j], 64); err == nil {
				return s[i:j], j, false
			}
		}
		return "", skipUnknownValue(s, i), false
	}
}

func isFunctionStart(s string, i int) bool {
	return strings.HasPrefix(s[i:], "function")
}

func skipFunctionLiteral(s string, i int) int {
	brace := strings.IndexByte(s[i:], '{')
	if brace < 0 {
		return len(s)
	}
	return skipBalanced(s, i+brace, '{', '}')
}

func skipTemplateString(s string, i int) int {
	j := i + 1
	for j < len(s) && s[j] != '`' {
		if s[j] == '\\' {
			j += 2
			continue
		}
		j++
	}
	return j + 1
}

func skipBalanced(s string, i int, open, close byte) int {
	depth := 0
	j := i
	inString := false
	var delim byte
	for j < len(s) {
		ch := s[j]
		switch {
		case inString:
			if ch == '\\' {
				j++
			} else if ch == delim {
				inString = false
			}
		case ch == '"' || ch == '\'' || ch == '`':
			inString = true
			delim = ch
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return j + 1
			}
		}
		j++
	}
	return len(s)
}

func skipUnknownValue(s string, i int) int {
	j := i
	depth := 0
	for j < len(s) {
		switch s[j] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return j
			}
			depth--
		case ',':
			if depth == 0 {
				return j
			}
		}
		j++
	}
	return j
}
