package policy

// PolicyConfig is the parsed form of a posture.yaml policy file.
//
// Domains and Enforcement are keyed by provider name (aws, gcp, github,
// kubernetes). Rules is keyed by rule ID.
type PolicyConfig struct {
	Version     int                          `yaml:"version"`
	Domains     map[string]DomainConfig      `yaml:"domains"`
	Rules       map[string]RuleConfig        `yaml:"rules"`
	Enforcement map[string]EnforcementConfig `yaml:"enforcement"`
}

type DomainConfig struct {
	Enabled bool `yaml:"enabled"`

	// MinSeverity drops findings of rules below this severity.
	MinSeverity string `yaml:"min_severity,omitempty"`
}

type RuleConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Severity string `yaml:"severity,omitempty"`

	// Params are rule-specific tuning values, e.g. log_types for
	// EKS_CONTROL_PLANE_LOGGING_DISABLED.
	Params map[string]string `yaml:"params,omitempty"`
}

// EnforcementConfig decides when a scan exits non-zero.
type EnforcementConfig struct {
	// FailOnSeverity triggers on any FAIL or WARN finding at or above the
	// severity.
	FailOnSeverity string `yaml:"fail_on_severity,omitempty"`

	// FailOnStatus triggers on any finding with one of the listed statuses.
	FailOnStatus []string `yaml:"fail_on_status,omitempty"`
}
