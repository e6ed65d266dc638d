// Command tweers is the build-time CLI: build <source_dir> [-o OUT] [-s
// START] [-b] [-w] [-t]. The argument parser itself is explicitly out of
// scope per spec.md §1 — this is the minimal stdlib-flag surface needed to
// drive the pipeline, not a feature of the core.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"tweers/config"
	"tweers/pipeline"
	"tweers/watch"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "pack":
		fmt.Fprintln(os.Stderr, "pack: not implemented — packaging is out of scope for this core")
		os.Exit(2)
	case "update":
		fmt.Fprintln(os.Stderr, "update: not implemented — the self-updater is out of scope for this core")
		os.Exit(2)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tweers build <source_dir> [-o OUT] [-s START] [-b] [-w] [-t] [-config FILE]")
}

// loadProjectConfig loads tweers.yaml from configPath if it exists. A
// missing file at the default path is not an error — the project config is
// optional (spec.md's config module); a missing file at an explicitly
// requested path is.
func loadProjectConfig(configPath string, explicit bool) config.Project {
	if _, err := os.Stat(configPath); err != nil {
		if explicit {
			log.Printf("❌ Failed loading config: %v", err)
			os.Exit(2)
		}
		return config.Project{}
	}
	proj, err := config.Load(configPath)
	if err != nil {
		log.Printf("❌ Failed loading config: %v", err)
		os.Exit(2)
	}
	return proj
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "tweers.yaml", "project config file (optional)")
	output := fs.String("o", "", "output path (overrides config)")
	start := fs.String("s", "", "start passage override (overrides config)")
	base64Flag := fs.Bool("b", false, "embed binary assets as base64 data: URIs (overrides config)")
	watchFlag := fs.Bool("w", false, "watch the source directory and rebuild on change (overrides config)")
	debug := fs.Bool("t", false, "debug build (overrides config)")
	execDir := fs.String("exec-dir", ".", "base directory for story-format/ and scripts/")
	fs.Parse(args)

	explicitConfig := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})
	proj := loadProjectConfig(*configPath, explicitConfig)

	// CLI flags override fields of the Project loaded from disk.
	sourceDir := proj.SourceDir
	if fs.NArg() >= 1 {
		sourceDir = fs.Arg(0)
	}
	if sourceDir == "" {
		usage()
		os.Exit(2)
	}

	outputPath := proj.OutputPath
	startOverride := proj.StartOverride
	base64Embed := proj.Base64
	watchMode := proj.Watch
	isDebug := proj.IsDebug

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			outputPath = *output
		case "s":
			startOverride = *start
		case "b":
			base64Embed = *base64Flag
		case "w":
			watchMode = *watchFlag
		case "t":
			isDebug = *debug
		}
	})
	if outputPath == "" {
		outputPath = "output.html"
	}

	cfg := pipeline.BuildConfig{
		SourceDir:     sourceDir,
		OutputPath:    outputPath,
		StartOverride: startOverride,
		Base64:        base64Embed,
		IsDebug:       isDebug,
		ExecDir:       *execDir,
		HookDeadline:  proj.HookDeadline(),
	}

	if watchMode {
		runWatch(cfg)
		return
	}

	result, err := pipeline.Build(cfg)
	if err != nil {
		log.Printf("❌ Build failed: %v", err)
		os.Exit(1)
	}
	for _, w := range result.Warnings {
		log.Printf("⚠️  %s", w.String())
	}
	if err := pipeline.WriteOutput(cfg.OutputPath, result.HTML); err != nil {
		log.Printf("❌ Failed writing output: %v", err)
		os.Exit(3)
	}
	log.Printf("✅ Wrote %s", cfg.OutputPath)
}

func runWatch(cfg pipeline.BuildConfig) {
	w, err := watch.New(cfg)
	if err != nil {
		log.Printf("❌ Failed to start watcher: %v", err)
		os.Exit(3)
	}
	w.Start()
	log.Println("🚀 Watching for changes. Press Ctrl+C to stop.")
	for range w.Events() {
		// events are logged by the watcher itself; nothing further to do here
	}
}
