// Package watch implements the debounced filesystem watcher that
// re-triggers the build pipeline, per spec.md §4.8.
package watch

import (
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tweers/pipeline"
)

// DebounceWindow is the fixed coalescing window of spec.md §4.8.
const DebounceWindow = 150 * time.Millisecond

// Event is emitted to subscribers on every rebuild attempt.
type Event struct {
	Type      string // "rebuild_start", "rebuild_success", "rebuild_failure"
	Timestamp time.Time
	Err       error
}

// Watcher debounces filesystem events under a source tree into whole-tree
// rebuilds: a single shared debounce timer (not per-file, since a rebuild
// consumes the whole tree), at most one build in flight, at most one queued
// follow-up build. On build failure the last successful output is retained
// on disk and the watcher logs and continues — no sticky failure state.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cfg    pipeline.BuildConfig
	events chan Event
	stop   chan struct{}

	mu        sync.Mutex
	debounce  *time.Timer
	building  bool
	queued    bool
	lastGood  string // last successfully built HTML, for callers that want it without re-reading disk
}

// New creates a Watcher over cfg.SourceDir.
func New(cfg pipeline.BuildConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:    fsw,
		cfg:    cfg,
		events: make(chan Event, 100),
		stop:   make(chan struct{}),
	}
	if err := addRecursive(fsw, cfg.SourceDir); err != nil {
		fsw.Close()
		return nil, err
	}
	log.Printf("👀 Watching: %s", cfg.SourceDir)
	return w, nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// Events returns the channel of rebuild events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. It returns immediately; rebuilds happen in a
// background goroutine.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				w.scheduleRebuild()
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Printf("❌ Watcher error: %v", err)
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop halts the watcher.
func (w *Watcher) Stop() error {
	close(w.stop)
	return w.fsw.Close()
}

// scheduleRebuild resets the shared debounce timer. When it fires, a
// rebuild runs unless one is already in flight, in which case a single
// follow-up rebuild is queued.
func (w *Watcher) scheduleRebuild() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(DebounceWindow, w.triggerRebuild)
}

func (w *Watcher) triggerRebuild() {
	w.mu.Lock()
	if w.building {
		w.queued = true
		w.mu.Unlock()
		return
	}
	w.building = true
	w.mu.Unlock()

	w.runBuild()

	w.mu.Lock()
	w.building = false
	needsFollowUp := w.queued
	w.queued = false
	w.mu.Unlock()

	if needsFollowUp {
		w.triggerRebuild()
	}
}

func (w *Watcher) runBuild() {
	log.Printf("🔄 Rebuilding: %s", w.cfg.SourceDir)
	w.events <- Event{Type: "rebuild_start", Timestamp: time.Now()}

	start := time.Now()
	result, err := pipeline.Build(w.cfg)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("❌ Build failed (%v): %v", elapsed, err)
		w.events <- Event{Type: "rebuild_failure", Timestamp: time.Now(), Err: err}
		return
	}

	if w.cfg.OutputPath != "" {
		if werr := pipeline.WriteOutput(w.cfg.OutputPath, result.HTML); werr != nil {
			log.Printf("❌ Failed writing output (%v): %v", elapsed, werr)
			w.events <- Event{Type: "rebuild_failure", Timestamp: time.Now(), Err: werr}
			return
		}
	}

	w.mu.Lock()
	w.lastGood = result.HTML
	w.mu.Unlock()

	log.Printf("✅ Built in %v", elapsed)
	for _, wr := range result.Warnings {
		log.Printf("⚠️  %s", wr.String())
	}
	w.events <- Event{Type: "rebuild_success", Timestamp: time.Now()}
}

// LastGood returns the most recently successful build's HTML, for
// callers that want it without re-reading disk.
func (w *Watcher) LastGood() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastGood
}
