package policy

import (
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// RuleEnabled reports whether ruleID of provider should be evaluated at all.
func RuleEnabled(ruleID, provider string, cfg *PolicyConfig) bool {
	if cfg == nil {
		return true
	}
	if d, ok := cfg.Domains[provider]; ok && !d.Enabled {
		return false
	}
	if rc, ok := cfg.Rules[ruleID]; ok && rc.Enabled != nil {
		return *rc.Enabled
	}
	return true
}

// ApplyPolicy filters and rewrites findings of one provider: disabled domains
// and rules are dropped, severity overrides are applied, then findings below
// the domain's min_severity are removed.
func ApplyPolicy(findings []models.Finding, provider string, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}

	d, hasDomain := cfg.Domains[provider]
	if hasDomain && !d.Enabled {
		return []models.Finding{}
	}
	minRank := 0
	if hasDomain && d.MinSeverity != "" {
		minRank = severityRank[models.Severity(strings.ToUpper(d.MinSeverity))]
	}

	result := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		ruleCfg, hasRule := cfg.Rules[f.RuleID]

		if hasRule && ruleCfg.Enabled != nil && !*ruleCfg.Enabled {
			continue
		}

		if hasRule && ruleCfg.Severity != "" {
			f.Severity = models.Severity(strings.ToUpper(ruleCfg.Severity))
		}

		if minRank > 0 && severityRank[f.Severity] < minRank {
			continue
		}

		result = append(result, f)
	}

	return result
}

// RuleParams returns the per-rule params of cfg in the shape rules read them.
func RuleParams(cfg *PolicyConfig) map[string]map[string]string {
	if cfg == nil {
		return nil
	}
	out := make(map[string]map[string]string)
	for id, rc := range cfg.Rules {
		if len(rc.Params) > 0 {
			out[id] = rc.Params
		}
	}
	return out
}
