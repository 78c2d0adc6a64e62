// Package config holds run options for an extraction.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Options is everything a marchiver run needs. InputDir and OutputDir come
// from the CLI; the remaining fields can come from an optional YAML
// settings file.
type Options struct {
	InputDir  string `yaml:"-" validate:"required"`
	OutputDir string `yaml:"-" validate:"required"`
	Verbose   bool   `yaml:"-"`

	// AttachmentWorkers bounds concurrent media copies. Zero means
	// unbounded.
	AttachmentWorkers int    `yaml:"attachment_workers" validate:"gte=0,lte=64"`
	LogFile           string `yaml:"log_file"`
}

// Default returns the options used when no settings file is given.
func Default() Options {
	return Options{AttachmentWorkers: 4}
}

// Load reads a YAML settings file over the defaults. An empty path returns
// the defaults.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse config: %w", err)
	}
	return opts, nil
}

// Validate checks the assembled options, flags included.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
