package policy

import (
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// severityRank orders severities: CRITICAL (5) > HIGH (4) > MEDIUM (3) >
// LOW (2) > INFO (1). Unknown values rank 0.
var severityRank = map[models.Severity]int{
	models.SeverityCritical: 5,
	models.SeverityHigh:     4,
	models.SeverityMedium:   3,
	models.SeverityLow:      2,
	models.SeverityInfo:     1,
}

// ShouldFail reports whether findings breach the enforcement block configured
// for provider.
//
// It returns false when cfg is nil, no block is configured for provider, or
// the block names only unrecognised values. Otherwise it returns true when
// either:
//   - a FAIL or WARN finding has a severity at or above fail_on_severity
//   - any finding has a status listed in fail_on_status
func ShouldFail(provider string, findings []models.Finding, cfg *PolicyConfig) bool {
	if cfg == nil {
		return false
	}
	enfCfg, ok := cfg.Enforcement[provider]
	if !ok {
		return false
	}

	threshold := severityRank[models.Severity(strings.ToUpper(enfCfg.FailOnSeverity))]
	statuses := make(map[models.Status]bool, len(enfCfg.FailOnStatus))
	for _, name := range enfCfg.FailOnStatus {
		if s, err := models.ParseStatus(name); err == nil {
			statuses[s] = true
		}
	}

	for _, f := range findings {
		if statuses[f.Status] {
			return true
		}
		if threshold == 0 {
			continue
		}
		if f.Status != models.StatusFail && f.Status != models.StatusWarn {
			continue
		}
		if r, ok := severityRank[f.Severity]; ok && r >= threshold {
			return true
		}
	}
	return false
}
