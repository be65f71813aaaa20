package policy_test

import (
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/posture/internal/policy"
)

// knownRules is the registered rule ID set used by the validator tests.
var knownRules = []string{"RULE_A", "RULE_B", "RULE_C"}

func boolPtr(b bool) *bool { return &b }

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  policy.PolicyConfig
		want []string // substrings, one per expected error, in order
	}{
		{
			name: "minimal",
			cfg:  policy.PolicyConfig{Version: 1},
		},
		{
			name: "full",
			cfg: policy.PolicyConfig{
				Version: 1,
				Domains: map[string]policy.DomainConfig{
					"aws": {Enabled: true, MinSeverity: "medium"},
					"gcp": {Enabled: true, MinSeverity: "HIGH"},
				},
				Rules: map[string]policy.RuleConfig{
					"RULE_A": {Enabled: boolPtr(false)},
					"RULE_B": {Severity: "low", Params: map[string]string{"max_age_days": "90"}},
					"RULE_C": {Severity: "Critical"},
				},
				Enforcement: map[string]policy.EnforcementConfig{
					"github":     {FailOnSeverity: "critical"},
					"kubernetes": {FailOnStatus: []string{"fail", "UNKNOWN"}},
				},
			},
		},
		{
			name: "version 2",
			cfg:  policy.PolicyConfig{Version: 2},
			want: []string{"version: unsupported value 2"},
		},
		{
			name: "version 0",
			cfg:  policy.PolicyConfig{},
			want: []string{"version: unsupported value 0"},
		},
		{
			name: "unknown domain",
			cfg: policy.PolicyConfig{Version: 1, Domains: map[string]policy.DomainConfig{
				"networking": {Enabled: true},
			}},
			want: []string{"domains.networking: unknown domain"},
		},
		{
			name: "bad min_severity",
			cfg: policy.PolicyConfig{Version: 1, Domains: map[string]policy.DomainConfig{
				"aws": {Enabled: true, MinSeverity: "severe"},
			}},
			want: []string{`domains.aws.min_severity: invalid value "severe"`},
		},
		{
			name: "unknown rule and bad override",
			cfg: policy.PolicyConfig{Version: 1, Rules: map[string]policy.RuleConfig{
				"RULE_A":   {Severity: "urgent"},
				"RULE_ZZZ": {Enabled: boolPtr(true)},
			}},
			want: []string{`rules.RULE_A.severity: invalid value "urgent"`, "rules.RULE_ZZZ: unknown rule ID"},
		},
		{
			name: "empty param name",
			cfg: policy.PolicyConfig{Version: 1, Rules: map[string]policy.RuleConfig{
				"RULE_B": {Params: map[string]string{" ": "x"}},
			}},
			want: []string{"rules.RULE_B.params: empty parameter name"},
		},
		{
			name: "bad enforcement",
			cfg: policy.PolicyConfig{Version: 1, Enforcement: map[string]policy.EnforcementConfig{
				"aws":    {FailOnSeverity: "extreme", FailOnStatus: []string{"BROKEN"}},
				"oracle": {},
			}},
			want: []string{
				`enforcement.aws.fail_on_severity: invalid value "extreme"`,
				`enforcement.aws.fail_on_status: invalid value "BROKEN"`,
				"enforcement.oracle: unknown domain",
			},
		},
		{
			name: "errors accumulate across sections",
			cfg: policy.PolicyConfig{
				Version:     3,
				Domains:     map[string]policy.DomainConfig{"oracle": {}},
				Rules:       map[string]policy.RuleConfig{"NOPE": {}},
				Enforcement: map[string]policy.EnforcementConfig{"aws": {FailOnSeverity: "x"}},
			},
			want: []string{"version", "domains.oracle", "rules.NOPE", "enforcement.aws.fail_on_severity"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := policy.Validate(&tc.cfg, knownRules)
			if len(errs) != len(tc.want) {
				t.Fatalf("got %d errors %v; want %d", len(errs), errs, len(tc.want))
			}
			for i, want := range tc.want {
				if !strings.Contains(errs[i].Error(), want) {
					t.Errorf("error %d = %q; want it to contain %q", i, errs[i], want)
				}
			}
		})
	}
}

func TestValidate_SeverityCaseInsensitive(t *testing.T) {
	for _, sev := range []string{"critical", "CRITICAL", "High", "medium", "LOW", "Info"} {
		cfg := &policy.PolicyConfig{
			Version: 1,
			Rules:   map[string]policy.RuleConfig{"RULE_A": {Severity: sev}},
		}
		if errs := policy.Validate(cfg, knownRules); len(errs) != 0 {
			t.Errorf("severity %q: %v", sev, errs)
		}
	}
}

func TestValidate_NilConfig(t *testing.T) {
	if errs := policy.Validate(nil, knownRules); len(errs) != 1 {
		t.Errorf("errs = %v; want one error", errs)
	}
}
