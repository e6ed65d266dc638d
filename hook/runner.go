// Package hook runs the two-stage user-scripted transformation (data-phase
// and html-phase hooks) in an embedded JavaScript sandbox, per spec.md §4.5.
package hook

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"

	"tweers/twee"
)

// FormatRef is the {name, version} object exposed to scripts as the format
// global.
type FormatRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultDeadline is the suggested default wall-clock deadline for a single
// script, per spec.md §5 and DESIGN.md Open Question #2.
const DefaultDeadline = 10 * time.Second

// scriptFiles enumerates every *.js file under dir, recursively, in
// lexicographic path order, matching spec.md §4.5's phase ordering
// guarantee.
func scriptFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("IoError(%s): %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("IoError(%s): not a directory", dir)
	}
	var files []string
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && strings.HasSuffix(path, ".js") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("IoError(%s): %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// newConsole installs a console global routed to the standard logger, per
// SPEC_FULL.md's ambient logging section.
func newConsole(vm *goja.Runtime, scriptPath string) {
	console := vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			log.Printf("[hook %s] %s: %s", filepath.Base(scriptPath), level, strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	console.Set("log", logFn("log"))
	console.Set("warn", logFn("warn"))
	console.Set("error", logFn("error"))
	vm.Set("console", console)
}

// runWithDeadline executes run on vm, interrupting it if it has not
// returned within deadline, surfacing HookTimeout.
func runWithDeadline(vm *goja.Runtime, scriptPath string, deadline time.Duration, run func() (goja.Value, error)) (goja.Value, error) {
	timer := time.AfterFunc(deadline, func() {
		vm.Interrupt(fmt.Errorf("HookTimeout(%s): exceeded %s", scriptPath, deadline))
	})
	defer timer.Stop()
	v, err := run()
	if err != nil {
		if ie, ok := err.(*goja.InterruptedError); ok {
			return nil, fmt.Errorf("HookTimeout(%s): %v", scriptPath, ie.Value())
		}
		return nil, fmt.Errorf("HookFailed(%s): %w", scriptPath, err)
	}
	return v, nil
}

// RunDataPhase loads every *.js file under dir in sorted order and executes
// each against the current passage map, within a single shared interpreter
// context for the phase. Each script's return value replaces input for the
// next; a script that returns undefined leaves input unchanged.
func RunDataPhase(dir string, passages map[string]twee.Passage, fmtRef FormatRef, deadline time.Duration) (map[string]twee.Passage, error) {
	files, err := scriptFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return passages, nil
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	current := passages
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("IoError(%s): %w", path, err)
		}
		newConsole(vm, path)
		vm.Set("format", fmtRef)
		vm.Set("input", toJSPassages(current))

		wrapped := "(function(){\n" + string(src) + "\n})()"
		val, err := runWithDeadline(vm, path, deadline, func() (goja.Value, error) {
			return vm.RunString(wrapped)
		})
		if err != nil {
			return nil, err
		}
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			continue // input unchanged
		}
		next, err := fromJSPassages(val, current)
		if err != nil {
			return nil, fmt.Errorf("HookFailed(%s): return value did not match the passage map contract: %w", path, err)
		}
		current = next
	}
	return current, nil
}

// RunHTMLPhase loads every *.js file under dir in sorted order and executes
// each against the current HTML string.
func RunHTMLPhase(dir string, html string, fmtRef FormatRef, deadline time.Duration) (string, error) {
	files, err := scriptFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return html, nil
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	current := html
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("IoError(%s): %w", path, err)
		}
		newConsole(vm, path)
		vm.Set("format", fmtRef)
		vm.Set("input", current)

		wrapped := "(function(){\n" + string(src) + "\n})()"
		val, err := runWithDeadline(vm, path, deadline, func() (goja.Value, error) {
			return vm.RunString(wrapped)
		})
		if err != nil {
			return "", err
		}
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			continue
		}
		s, ok := val.Export().(string)
		if !ok {
			return "", fmt.Errorf("HookFailed(%s): html-phase script must return a string", path)
		}
		current = s
	}
	return current, nil
}

// toJSPassages builds the input global for data-phase scripts: each passage
// is a writable {name, tags, content} object held as plain maps and slices,
// so entries a script mutates in place or passes through unchanged export
// back to the shapes fromJSPassages reads.
func toJSPassages(passages map[string]twee.Passage) map[string]interface{} {
	out := make(map[string]interface{}, len(passages))
	for name, p := range passages {
		tags := make([]interface{}, len(p.Tags))
		for i, t := range p.Tags {
			tags[i] = t
		}
		out[name] = map[string]interface{}{"name": p.Name, "tags": tags, "content": p.Content}
	}
	return out
}

// fromJSPassages reconstructs the passage map from a script's return value,
// preserving each surviving passage's Position/Size/SourceFile/SourceLine
// from the original map (those fields are not part of the script contract)
// and dropping any passage the script's return value omitted.
func fromJSPassages(val goja.Value, original map[string]twee.Passage) (map[string]twee.Passage, error) {
	exported := val.Export()
	raw, ok := exported.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an object keyed by passage name")
	}
	out := make(map[string]twee.Passage, len(raw))
	for key, v := range raw {
		fields, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("passage %q: expected an object", key)
		}
		name, _ := fields["name"].(string)
		if name == "" {
			name = key
		}
		content, _ := fields["content"].(string)
		var tags []string
		if rawTags, ok := fields["tags"].([]interface{}); ok {
			for _, t := range rawTags {
				if s, ok := t.(string); ok {
					tags = append(tags, s)
				}
			}
		}
		p := original[key]
		p.Name = name
		p.Content = content
		p.Tags = tags
		out[name] = p
	}
	return out, nil
}
