// Package html implements the HtmlEmitter: composing the final HTML from
// a story format envelope, the serialized passage set, and story metadata.
package html

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tweers/format"
	"tweers/twee"
)

const creator = "TweeRS"
const creatorVersion = "1.0.0"

// Emit composes the output HTML document, per spec.md §4.7. passages must
// already be in final emission order (the FileCollector's sort order with
// within-file order preserved, last-writer-wins ties resolved upstream).
func Emit(passages []twee.Passage, data twee.StoryData, fmtInfo format.Info, startPassage string, isDebug bool) (string, error) {
	if fmtInfo.Source == "" {
		return "", fmt.Errorf("FormatSourceMissing: envelope has no source template")
	}

	chunk, err := buildDataChunk(passages, data, fmtInfo, startPassage)
	if err != nil {
		return "", err
	}

	out := fmtInfo.Source
	out = strings.ReplaceAll(out, "{{STORY_NAME}}", escapeContent(data.Name))
	out = strings.ReplaceAll(out, "{{STORY_DATA}}", chunk)
	return out, nil
}

// buildDataChunk builds the <tw-storydata> element: scripts/stylesheets
// sections, one <tw-tag> per tag-color mapping, and one <tw-passagedata>
// per non-reserved, non-Twine.private passage, grounded on the original's
// get_twine2_data_chunk.
func buildDataChunk(passages []twee.Passage, data twee.StoryData, fmtInfo format.Info, startPassage string) (string, error) {
	var scripts, styles []string
	var dataPassages []twee.Passage
	startPid := ""

	pid := 0
	for _, p := range passages {
		if p.Name == "StoryTitle" || p.Name == "StoryData" {
			continue
		}
		if p.HasTag("script") {
			scripts = append(scripts, p.Content)
			continue
		}
		if p.HasTag("stylesheet") {
			styles = append(styles, p.Content)
			continue
		}
		if twee.Reserved(p.Name, p.Tags) {
			continue
		}
		pid++
		dataPassages = append(dataPassages, p)
		if p.Name == startPassage {
			startPid = strconv.Itoa(pid)
		}
	}
	if startPid == "" {
		return "", fmt.Errorf("MissingStartPassage: %q did not resolve to an emitted passage", startPassage)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<tw-storydata name="%s" startnode="%s" creator="%s" creator-version="%s" ifid="%s" zoom="%s" format="%s" format-version="%s" options="" hidden>`,
		escapeAttr(data.Name), startPid, creator, creatorVersion, escapeAttr(data.Ifid),
		formatZoom(data.Zoom), escapeAttr(fmtInfo.Name), escapeAttr(fmtInfo.Version))

	b.WriteString("<style role=\"stylesheet\" id=\"twine-user-stylesheet\" type=\"text/twine-css\">")
	b.WriteString(strings.Join(styles, "\n"))
	b.WriteString("</style>")

	b.WriteString("<script role=\"script\" id=\"twine-user-script\" type=\"text/twine-javascript\">")
	b.WriteString(strings.Join(scripts, "\n"))
	b.WriteString("</script>")

	for _, tag := range sortedTagColorKeys(data.TagColors) {
		fmt.Fprintf(&b, `<tw-tag name="%s" color="%s"></tw-tag>`, escapeAttr(tag), escapeAttr(data.TagColors[tag]))
	}

	for i, p := range dataPassages {
		fmt.Fprintf(&b, `<tw-passagedata pid="%d" name="%s" tags="%s" position="%s" size="%s">%s</tw-passagedata>`,
			i+1, escapeAttr(p.Name), escapeAttr(strings.Join(p.Tags, " ")),
			escapeAttr(p.Position), escapeAttr(p.Size), escapeContent(p.Content))
	}

	b.WriteString("</tw-storydata>")
	return b.String(), nil
}

func sortedTagColorKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatZoom(z float64) string {
	if z == 0 {
		return "1"
	}
	return strconv.FormatFloat(z, 'g', -1, 64)
}

// escapeAttr escapes &, <, >, " for attribute values, per spec.md §4.7.
func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

// escapeContent escapes &, <, > for text nodes, per spec.md §4.7 — narrower
// than attribute escaping; apostrophes are left unescaped.
func escapeContent(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
