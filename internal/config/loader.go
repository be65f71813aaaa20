package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

// Default values applied to unset fields.
const (
	DefaultMaxConcurrency = 32
	DefaultMetricsAddr    = "127.0.0.1:9464"
)

// FileLoader reads Config from a YAML file.
type FileLoader struct {
	path     string
	optional bool
}

// NewFileLoader returns a loader for path. A missing file is an error.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// NewDefaultLoader returns a loader for ~/.config/posture/config.yaml that
// falls back to defaults when the file does not exist.
func NewDefaultLoader() (*FileLoader, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	return &FileLoader{path: filepath.Join(dir, "posture", "config.yaml"), optional: true}, nil
}

// ConfigPath returns the file the loader reads.
func (l *FileLoader) ConfigPath() string { return l.path }

// Load reads the file, applies defaults and validates the result.
func (l *FileLoader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if l.optional && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", l.path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Parse decodes YAML, rejecting unknown fields, then applies defaults and
// validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scan.MaxConcurrency == 0 {
		c.Scan.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Scan.FanOut == 0 {
		c.Scan.FanOut = collect.DefaultFanOut
	}
	if c.Scan.RuleConcurrency == 0 {
		c.Scan.RuleConcurrency = rules.DefaultConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.Join(errs...)
}
