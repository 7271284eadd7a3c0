// Package config loads orbit configuration from YAML files, .env files and
// the process environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/orbit/domain/config"
)

// Loader loads configuration. Sources are layered in this order:
// built-in defaults, the YAML file, ORBIT_* and legacy environment
// variables.
type Loader struct {
	// ExpandEnv enables ${VAR} expansion inside the file.
	ExpandEnv bool
	// StrictEnv fails if referenced env vars are missing.
	StrictEnv bool
	// Validate enables configuration validation.
	Validate bool
	// Overrides enables environment variable overrides.
	Overrides bool
	// Environ is consulted for overrides; nil means os.LookupEnv.
	Environ func(string) (string, bool)
}

// NewLoader creates a new configuration loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		ExpandEnv: true,
		Validate:  true,
		Overrides: true,
	}
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.ExpandEnv = enabled
	}
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.StrictEnv = enabled
	}
}

// WithValidation enables or disables configuration validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Validate = enabled
	}
}

// WithEnviron replaces the environment lookup used for overrides.
func WithEnviron(lookup func(string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		l.Environ = lookup
	}
}

// WithOverrides enables or disables environment overrides.
func WithOverrides(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Overrides = enabled
	}
}

// NewLoaderWithOptions creates a loader with the specified options.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads configuration from a YAML (or JSON) file. An empty path
// loads defaults plus environment.
func (l *Loader) LoadFile(path string) (*config.Config, error) {
	if path == "" {
		return l.finish(config.Default())
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", config.ErrInvalidFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return l.Load(f)
}

// Load loads configuration from a reader. JSON documents are accepted as
// a subset of YAML.
func (l *Loader) Load(r io.Reader) (*config.Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if l.ExpandEnv {
		expander := &envExpander{strict: l.StrictEnv}
		expanded, err := expander.Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	cfg := config.Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
	}
	return l.finish(cfg)
}

// LoadString loads configuration from a string.
func (l *Loader) LoadString(content string) (*config.Config, error) {
	return l.LoadBytes([]byte(content))
}

// LoadBytes loads configuration from bytes.
func (l *Loader) LoadBytes(data []byte) (*config.Config, error) {
	return l.Load(bytes.NewReader(data))
}

func (l *Loader) finish(cfg *config.Config) (*config.Config, error) {
	if l.Overrides {
		lookup := l.Environ
		if lookup == nil {
			lookup = os.LookupEnv
		}
		if err := ApplyOverrides(cfg, lookup); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()

	if l.Validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
