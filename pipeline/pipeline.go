// Package pipeline orchestrates the full TweeRS build: source collection,
// tokenization, story-data resolution, asset embedding, hook execution,
// format loading, and HTML emission, per spec.md §2 and §6.
package pipeline

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"tweers/asset"
	"tweers/format"
	"tweers/hook"
	htmlpkg "tweers/html"
	"tweers/source"
	"tweers/twee"
)

// BuildConfig configures a single build invocation, per spec.md §3.
type BuildConfig struct {
	SourceDir     string
	OutputPath    string
	StartOverride string
	Base64        bool
	IsDebug       bool
	FormatInfo    *format.Info // optional override; loaded from disk if nil
	ExecDir       string       // base for story-format/ and scripts/ lookup
	HookDeadline  time.Duration
}

// ParseOutput is the intermediate value of spec.md §3: a caller may parse
// once and emit multiple times via BuildFromParsed.
type ParseOutput struct {
	Passages   map[string]twee.Passage
	Order      []string // emission order (FileCollector order, ties last-writer)
	StoryData  twee.StoryData
	FormatInfo format.Info // may have an empty Source if not yet loaded
	IsDebug    bool
	Warnings   []twee.Warning
}

// BuildResult is the outcome of a successful build.
type BuildResult struct {
	HTML     string
	Warnings []twee.Warning
}

// BuildError is the uniform typed error the pipeline driver returns, per
// spec.md §7 and §9.
type BuildError struct {
	Kind string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func wrapErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	return &BuildError{Kind: kind, Err: err}
}

// Parse runs Tokenizer → PassageAssembler → StoryDataResolver over sources
// the FileCollector already loaded from disk, without loading a format
// file. This is the "parse" entry point of spec.md §6.
func Parse(sources []source.InputSource, isDebug bool) (ParseOutput, error) {
	passages := map[string]twee.Passage{}
	var order []string
	var warnings []twee.Warning
	seen := map[string]bool{}

	for _, src := range sources {
		if src.Kind != source.KindText {
			continue
		}
		raw, err := twee.Tokenize(src.Text)
		if err != nil {
			return ParseOutput{}, wrapErr("MalformedHeader", fmt.Errorf("%s: %w", src.Path, err))
		}
		seenInFile := map[string]bool{}
		for _, rp := range raw {
			p := twee.Assemble(rp, src.Path)
			if seenInFile[p.Name] {
				log.Printf("DuplicatePassageWithinFile: %s: %q redefined, last definition wins", src.Path, p.Name)
				warnings = append(warnings, twee.Warning{
					Kind:   "DuplicatePassageWithinFile",
					Detail: p.Name,
					Source: src.Path,
					Line:   p.SourceLine,
				})
			}
			seenInFile[p.Name] = true
			passages[p.Name] = p
			if !seen[p.Name] {
				seen[p.Name] = true
				order = append(order, p.Name)
			}
		}
	}

	// In emission order, the last-writer rule applies to content, but the
	// ordinal position is inherited from the first time the name was seen
	// (spec.md §5 ordering guarantees).
	var orderedPassages []twee.Passage
	for _, name := range order {
		orderedPassages = append(orderedPassages, passages[name])
	}

	storyData, sdWarnings, err := twee.ResolveStoryData(orderedPassages)
	if err != nil {
		return ParseOutput{}, wrapErr("MissingStoryData", err)
	}
	if storyData.Name == "" {
		if title, ok := passages["StoryTitle"]; ok {
			storyData.Name = title.Content
		}
	}
	if err := storyData.Validate(); err != nil {
		return ParseOutput{}, wrapErr("MissingIfid", err)
	}

	return ParseOutput{
		Passages:  passages,
		Order:     order,
		StoryData: storyData,
		IsDebug:   isDebug,
		Warnings:  append(warnings, sdWarnings...),
	}, nil
}

// Passages implements the "passages" programmatic entry point of spec.md
// §6: tolerant of missing StoryData, for editor tooling.
func Passages(sources []source.InputSource) (map[string]twee.Passage, error) {
	passages := map[string]twee.Passage{}
	for _, src := range sources {
		if src.Kind != source.KindText {
			continue
		}
		raw, err := twee.Tokenize(src.Text)
		if err != nil {
			return nil, wrapErr("MalformedHeader", fmt.Errorf("%s: %w", src.Path, err))
		}
		for _, rp := range raw {
			p := twee.Assemble(rp, src.Path)
			passages[p.Name] = p
		}
	}
	return passages, nil
}

// BuildFromParsed implements spec.md §6's "build_from_parsed": does not
// re-read from disk, requires ParseOutput.FormatInfo.Source to be filled.
func BuildFromParsed(out ParseOutput, cfg BuildConfig) (BuildResult, error) {
	if out.FormatInfo.Source == "" {
		return BuildResult{}, wrapErr("FormatSourceMissing", fmt.Errorf("ParseOutput.FormatInfo.Source is empty"))
	}
	return runFromParsed(out, cfg)
}

// Build implements spec.md §6's "build": loads the format file from disk if
// not supplied in cfg.FormatInfo.
func Build(cfg BuildConfig) (BuildResult, error) {
	sources, err := source.Collect(cfg.SourceDir, cfg.Base64)
	if err != nil {
		return BuildResult{}, wrapErr("NoSuchRoot", err)
	}

	out, err := Parse(sources, cfg.IsDebug)
	if err != nil {
		return BuildResult{}, err
	}

	if cfg.FormatInfo != nil {
		out.FormatInfo = *cfg.FormatInfo
	} else {
		info, err := format.Load(cfg.ExecDir, out.StoryData.Format, out.StoryData.FormatVersion)
		if err != nil {
			return BuildResult{}, wrapErr("FormatNotFound", err)
		}
		out.FormatInfo = info
	}

	var bytesSources []asset.BytesSource
	if cfg.Base64 {
		for _, src := range sources {
			if src.Kind == source.KindBytes {
				bytesSources = append(bytesSources, asset.BytesSource{Path: src.Path, Data: src.Data})
			}
		}
	}
	if len(bytesSources) > 0 {
		embedded, warnings := asset.Embed(out.Passages, bytesSources)
		out.Passages = embedded
		out.Warnings = append(out.Warnings, warnings...)
	}

	return runFromParsed(out, cfg)
}

func runFromParsed(out ParseOutput, cfg BuildConfig) (BuildResult, error) {
	deadline := cfg.HookDeadline
	if deadline == 0 {
		deadline = hook.DefaultDeadline
	}
	fmtRef := hook.FormatRef{Name: out.FormatInfo.Name, Version: out.FormatInfo.Version}

	dataDir := filepath.Join(cfg.ExecDir, "scripts", "data")
	processed, err := hook.RunDataPhase(dataDir, out.Passages, fmtRef, deadline)
	if err != nil {
		return BuildResult{}, wrapErr("HookFailed", err)
	}
	out.Passages = processed

	startName, err := twee.ResolveStart(out.Passages, cfg.StartOverride, out.StoryData.Start)
	if err != nil {
		return BuildResult{}, wrapErr("MissingStartPassage", err)
	}

	orderedPassages := emissionOrder(out.Passages, out.Order)

	htmlOut, err := htmlpkg.Emit(orderedPassages, out.StoryData, out.FormatInfo, startName, out.IsDebug)
	if err != nil {
		return BuildResult{}, wrapErr("HtmlEmit", err)
	}

	htmlDir := filepath.Join(cfg.ExecDir, "scripts", "html")
	htmlOut, err = hook.RunHTMLPhase(htmlDir, htmlOut, fmtRef, deadline)
	if err != nil {
		return BuildResult{}, wrapErr("HookFailed", err)
	}

	return BuildResult{HTML: htmlOut, Warnings: out.Warnings}, nil
}

// emissionOrder rebuilds an ordered passage slice from a (possibly
// hook-mutated) passage map, preserving the original first-seen order for
// names still present and appending any hook-introduced names afterward in
// sorted order for determinism.
func emissionOrder(passages map[string]twee.Passage, order []string) []twee.Passage {
	var out []twee.Passage
	seen := map[string]bool{}
	for _, name := range order {
		if p, ok := passages[name]; ok {
			out = append(out, p)
			seen[name] = true
		}
	}
	var extra []string
	for name := range passages {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		for _, name := range extra {
			out = append(out, passages[name])
		}
	}
	return out
}
