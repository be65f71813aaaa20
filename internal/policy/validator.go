package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// validProviders is the set of provider names a policy may configure.
var validProviders = map[string]bool{
	"aws":        true,
	"azure":      true,
	"gcp":        true,
	"github":     true,
	"kubernetes": true,
}

const providerList = "aws, azure, gcp, github, kubernetes"

const severityList = "CRITICAL, HIGH, MEDIUM, LOW, INFO"

// Validate checks cfg against the registered rule IDs and returns every
// problem found; it never stops at the first one. An empty result means the
// policy is usable.
//
// Checks:
//   - version must be 1
//   - domain and enforcement keys must name a known provider
//   - severities (min_severity, rule overrides, fail_on_severity) must be
//     CRITICAL, HIGH, MEDIUM, LOW or INFO in any case
//   - rule IDs must be registered and param names non-empty
//   - fail_on_status entries must be PASS, WARN, FAIL or UNKNOWN
//
// Errors are ordered by section, then by key.
func Validate(cfg *PolicyConfig, availableRuleIDs []string) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	known := make(map[string]bool, len(availableRuleIDs))
	for _, id := range availableRuleIDs {
		known[id] = true
	}

	var v validation
	if cfg.Version != 1 {
		v.addf("version: unsupported value %d; must be 1", cfg.Version)
	}

	for _, name := range sortedKeys(cfg.Domains) {
		v.provider("domains", name)
		v.severity("domains."+name+".min_severity", cfg.Domains[name].MinSeverity)
	}

	for _, id := range sortedKeys(cfg.Rules) {
		rc := cfg.Rules[id]
		if !known[id] {
			v.addf("rules.%s: unknown rule ID", id)
		}
		v.severity("rules."+id+".severity", rc.Severity)
		for name := range rc.Params {
			if strings.TrimSpace(name) == "" {
				v.addf("rules.%s.params: empty parameter name", id)
			}
		}
	}

	for _, name := range sortedKeys(cfg.Enforcement) {
		ec := cfg.Enforcement[name]
		v.provider("enforcement", name)
		v.severity("enforcement."+name+".fail_on_severity", ec.FailOnSeverity)
		for _, status := range ec.FailOnStatus {
			if _, err := models.ParseStatus(status); err != nil {
				v.addf("enforcement.%s.fail_on_status: invalid value %q; valid values: PASS, WARN, FAIL, UNKNOWN", name, status)
			}
		}
	}

	return v.errs
}

// validation accumulates policy errors.
type validation struct {
	errs []error
}

func (v *validation) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validation) provider(section, name string) {
	if !validProviders[name] {
		v.addf("%s.%s: unknown domain; valid values: %s", section, name, providerList)
	}
}

// severity accepts an empty value, which means "not set".
func (v *validation) severity(field, value string) {
	if value == "" {
		return
	}
	if _, ok := severityRank[models.Severity(strings.ToUpper(value))]; !ok {
		v.addf("%s: invalid value %q; valid values: %s", field, value, severityList)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
