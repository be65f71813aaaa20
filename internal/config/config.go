// Package config loads the posture CLI configuration file.
package config

// Config is the top-level application configuration.
// It is loaded from ~/.config/posture/config.yaml; every field has a default
// so the file is optional.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"    json:"scan"`
	Log     LogConfig     `yaml:"log"     json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	History HistoryConfig `yaml:"history" json:"history"`
	Rego    RegoConfig    `yaml:"rego"    json:"rego"`
}

// ScanConfig bounds provider calls and rule evaluation.
type ScanConfig struct {
	// MaxConcurrency bounds in-flight provider calls across all collectors.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"gte=1,lte=256"`

	// FanOut bounds in-flight calls of one dependent collector.
	FanOut int `yaml:"fan_out" json:"fan_out" validate:"gte=1,lte=256"`

	// RuleConcurrency bounds concurrently evaluating rules.
	RuleConcurrency int `yaml:"rule_concurrency" json:"rule_concurrency" validate:"gte=1,lte=256"`

	// Regions restricts the scan when no --regions flag is given.
	Regions []string `yaml:"regions" json:"regions" validate:"dive,required"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr"    json:"addr"    validate:"omitempty,hostname_port"`
}

// HistoryConfig points at the sqlite scan history. An empty path disables
// history unless --history is given.
type HistoryConfig struct {
	Path string `yaml:"path" json:"path"`
}

// RegoConfig points at a directory of custom Rego rules.
type RegoConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// Loader is the interface for reading Config from disk.
type Loader interface {
	// Load reads, parses, and validates the configuration file.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}
