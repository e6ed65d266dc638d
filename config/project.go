// Package config loads and validates the optional tweers.yaml project
// file. CLI flags override fields loaded from disk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Project is the persisted project configuration, ambient to the core
// pipeline (the teacher repo has no equivalent — Tweego itself is entirely
// flag-driven).
type Project struct {
	SourceDir        string `yaml:"source_dir" validate:"required"`
	OutputPath       string `yaml:"output_path" validate:"required"`
	Format           string `yaml:"format,omitempty"`
	FormatVersion    string `yaml:"format_version,omitempty"`
	Base64           bool   `yaml:"base64,omitempty"`
	Watch            bool   `yaml:"watch,omitempty"`
	IsDebug          bool   `yaml:"is_debug,omitempty"`
	StartOverride    string `yaml:"start_passage,omitempty"`
	HookDeadlineSecs int    `yaml:"hook_deadline_secs,omitempty" validate:"omitempty,gt=0"`
}

// HookDeadline returns the configured hook deadline, defaulting to 10s.
func (p Project) HookDeadline() time.Duration {
	if p.HookDeadlineSecs == 0 {
		return 10 * time.Second
	}
	return time.Duration(p.HookDeadlineSecs) * time.Second
}

var validate = validator.New()

// Load reads and validates a tweers.yaml file at path.
func Load(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("IoError(%s): %w", path, err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("InvalidConfig: %s: %w", path, err)
	}
	if err := validate.Struct(p); err != nil {
		return Project{}, fmt.Errorf("InvalidConfig: %s: %w", path, err)
	}
	return p, nil
}
