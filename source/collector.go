// Package source implements the FileCollector: enumerating and
// canonically ordering the files that feed the build pipeline.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind distinguishes the two InputSource variants named in spec.md §3.
type Kind int

const (
	// KindText is a UTF-8 Twee source file (.twee, .tw).
	KindText Kind = iota
	// KindBytes is an opaque binary asset, collected only when base64
	// embedding is requested.
	KindBytes
)

// InputSource is an in-memory file with a logical name, a declared kind,
// and a payload. Text sources are read as UTF-8; byte sources carry raw
// bytes only (the asset embedder infers their MIME type).
type InputSource struct {
	// Path is the collector-relative, forward-slash-normalized path used
	// for ordering and for resolving asset references.
	Path string
	Kind Kind
	Text string
	Data []byte
}

var textExtensions = map[string]bool{
	".twee": true,
	".tw":   true,
}

// MediaExtensions is the whitelist of byte-source extensions collected when
// base64 embedding is enabled (spec.md §4.1).
var MediaExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true,
	".avif": true, ".svg": true, ".mp3": true, ".ogg": true, ".wav": true,
	".m4a": true, ".mp4": true, ".webm": true, ".ico": true, ".otf": true,
	".ttf": true, ".woff": true, ".woff2": true,
}

// Collect walks root and returns its InputSources in the deterministic sort
// order required by spec.md §4.1: lexicographic byte-wise comparison of the
// path after normalizing separators to "/". A missing root is reported as
// NoSuchRoot; symlink loops are detected via a canonical-path set and
// reported as SymlinkCycle.
func Collect(root string, includeMedia bool) ([]InputSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("NoSuchRoot: %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("NoSuchRoot: %s is not a directory", root)
	}

	canonRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("NoSuchRoot: %s: %w", root, err)
	}

	seen := map[string]bool{canonRoot: true}
	var sources []InputSource

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, rerr := os.ReadDir(dir)
		if rerr != nil {
			return fmt.Errorf("IoError(%s): %w", dir, rerr)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			// filepath.WalkDir never descends into symlinked directories, so
			// a symlink loop would otherwise go unnoticed entirely. Resolve
			// symlinks explicitly and follow them, tracking canonical paths
			// to catch the loop.
			isDir := entry.IsDir()
			if entry.Type()&fs.ModeSymlink != 0 {
				target, serr := os.Stat(path)
				if serr != nil {
					return fmt.Errorf("IoError(%s): %w", path, serr)
				}
				isDir = target.IsDir()
			}

			if isDir {
				canon, cerr := filepath.EvalSymlinks(path)
				if cerr != nil {
					return fmt.Errorf("IoError(%s): %w", path, cerr)
				}
				if seen[canon] {
					return fmt.Errorf("SymlinkCycle: %s", path)
				}
				seen[canon] = true
				if err := walk(path); err != nil {
					return err
				}
				continue
			}

			ext := strings.ToLower(filepath.Ext(path))
			rel, rerr := filepath.Rel(root, path)
			if rerr != nil {
				return fmt.Errorf("IoError(%s): %w", path, rerr)
			}
			relSlash := filepath.ToSlash(rel)

			switch {
			case textExtensions[ext]:
				data, derr := os.ReadFile(path)
				if derr != nil {
					return fmt.Errorf("IoError(%s): %w", path, derr)
				}
				sources = append(sources, InputSource{Path: relSlash, Kind: KindText, Text: string(data)})
			case includeMedia && MediaExtensions[ext]:
				data, derr := os.ReadFile(path)
				if derr != nil {
					return fmt.Errorf("IoError(%s): %w", path, derr)
				}
				sources = append(sources, InputSource{Path: relSlash, Kind: KindBytes, Data: data})
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Path < sources[j].Path
	})
	return sources, nil
}
