// Package asset implements the AssetEmbedder: rewriting relative asset
// references inside passage bodies into inline data: URIs.
package asset

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"tweers/twee"
)

// BytesSource is a byte asset known to the build, keyed by the path used to
// reference it from passage content.
type BytesSource struct {
	Path string
	Data []byte
}

// reference patterns recognized inside passage bodies, per spec.md §4.6:
// src="...", href="...", data-src="...", and url(...).
var (
	attrRefPattern = regexp.MustCompile(`((?:src|href|data-src)=")([^"]+)(")`)
	urlRefPattern  = regexp.MustCompile(`(url\()([^)'"]+)(\))`)
)

var extMime = map[string]string{
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".webp": "image/webp", ".gif": "image/gif", ".avif": "image/avif",
	".svg": "image/svg+xml", ".mp3": "audio/mpeg", ".ogg": "audio/ogg",
	".wav": "audio/wav", ".m4a": "audio/mp4", ".mp4": "video/mp4",
	".webm": "video/webm", ".ico": "image/x-icon", ".otf": "font/otf",
	".ttf": "font/ttf", ".woff": "font/woff", ".woff2": "font/woff2",
}

// Embed rewrites asset references in passage bodies into data: URIs for
// every byte source the collector found. Matching is case-sensitive,
// regardless of host filesystem, so that output remains deterministic
// across platforms (DESIGN.md Open Question #1). Unknown references are
// left intact and reported as UnknownAssetReference warnings.
func Embed(passages map[string]twee.Passage, sources []BytesSource) (map[string]twee.Passage, []twee.Warning) {
	byPath := make(map[string]string, len(sources)) // path -> data URI
	for _, s := range sources {
		byPath[s.Path] = dataURI(s.Path, s.Data)
	}

	out := make(map[string]twee.Passage, len(passages))
	var warnings []twee.Warning
	for name, p := range passages {
		content, refWarnings := rewriteRefs(p.Content, byPath, p.SourceFile, p.SourceLine)
		p.Content = content
		out[name] = p
		warnings = append(warnings, refWarnings...)
	}
	return out, warnings
}

func rewriteRefs(content string, byPath map[string]string, sourceFile string, line int) (string, []twee.Warning) {
	var warnings []twee.Warning

	replace := func(pattern *regexp.Regexp) func(string) string {
		return func(match string) string {
			groups := pattern.FindStringSubmatch(match)
			ref := strings.TrimSpace(groups[2])
			clean := normalizeRefPath(ref)
			uri, ok := byPath[clean]
			if !ok {
				warnings = append(warnings, twee.Warning{
					Kind:   "UnknownAssetReference",
					Detail: ref,
					Source: sourceFile,
					Line:   line,
				})
				return match
			}
			return groups[1] + uri + groups[3]
		}
	}

	content = attrRefPattern.ReplaceAllStringFunc(content, replace(attrRefPattern))
	content = urlRefPattern.ReplaceAllStringFunc(content, replace(urlRefPattern))
	return content, warnings
}

func normalizeRefPath(ref string) string {
	ref = strings.Trim(ref, `'"`)
	ref = strings.TrimPrefix(ref, "./")
	return strings.ReplaceAll(ref, "\\", "/")
}

// dataURI builds a data:<mime>;base64,<payload> URI for one byte source,
// sniffing content first and falling back to the extension table when
// sniffing is inconclusive (notably for fonts, which sniff as
// application/octet-stream).
func dataURI(path string, data []byte) string {
	mime := mimetype.Detect(data).String()
	if mime == "application/octet-stream" || mime == "" {
		if ext := extOf(path); ext != "" {
			if m, ok := extMime[ext]; ok {
				mime = m
			}
		}
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}
