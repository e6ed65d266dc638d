package pipeline

import (
	"os"
	"path/filepath"
)

// WriteOutput writes html to path, creating parent directories as needed.
// Grounded on the teacher's compile-result file handling
// (compiler/tweego_wrapper.go's OutputFile bookkeeping).
func WriteOutput(path, html string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrapErr("IoError", err)
		}
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return wrapErr("IoError", err)
	}
	return nil
}
