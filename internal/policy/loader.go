package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPolicyFile is looked up in the working directory when no --policy
// flag is given.
const DefaultPolicyFile = "posture.yaml"

var ErrUnsupportedVersion = errors.New("unsupported policy version")

// LoadPolicy reads and parses the policy file at path.
func LoadPolicy(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParsePolicy(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return cfg, nil
}

// ParsePolicy decodes a policy document. Unknown keys are rejected so that a
// misspelt section does not silently disable enforcement.
func ParsePolicy(r io.Reader) (*PolicyConfig, error) {
	var cfg PolicyConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrUnsupportedVersion)
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cfg.Version)
	}

	if cfg.Domains == nil {
		cfg.Domains = make(map[string]DomainConfig)
	}
	if cfg.Rules == nil {
		cfg.Rules = make(map[string]RuleConfig)
	}
	if cfg.Enforcement == nil {
		cfg.Enforcement = make(map[string]EnforcementConfig)
	}
	return &cfg, nil
}

// LoadOptional loads path when it exists. A missing file yields a nil config
// and no error so scans run with built-in defaults.
func LoadOptional(path string) (*PolicyConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return LoadPolicy(path)
}
