package engine

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

// Aggregation is the merged outcome of one executor run.
type Aggregation struct {
	Findings       []models.Finding
	RuleErrors     []models.RuleError
	RulesEvaluated int
}

// Aggregate concatenates the findings of results in result order and stamps
// each with the identity of its rule. Framework errors become RuleErrors and
// never drop the findings the rule emitted before failing.
func Aggregate(results []rules.Result, registry rules.RuleRegistry) Aggregation {
	var agg Aggregation
	for _, res := range results {
		agg.RulesEvaluated++
		var meta rules.Metadata
		if r, ok := registry.Get(res.RuleID); ok {
			meta = r.Metadata()
		}
		for _, f := range res.Findings {
			stamp(&f, res.RuleID, meta)
			agg.Findings = append(agg.Findings, f)
		}
		if res.Err != nil {
			agg.RuleErrors = append(agg.RuleErrors, models.RuleError{
				RuleID:  res.RuleID,
				Message: res.Err.Error(),
			})
		}
	}
	return agg
}

// stamp writes the rule identity onto f and assigns its deterministic ID.
func stamp(f *models.Finding, ruleID string, meta rules.Metadata) {
	f.RuleID = ruleID
	f.Title = meta.Title
	f.Category = meta.Category
	f.Domain = meta.Domain
	f.Severity = meta.Severity
	if len(meta.Compliance) > 0 {
		f.Compliance = make(map[string]string, len(meta.Compliance))
		for k, v := range meta.Compliance {
			f.Compliance[k] = v
		}
	}
	f.ID = FindingID(*f)
}

// FindingID hashes the fields that identify a finding across scans. Two
// evaluations of the same cache yield the same IDs.
func FindingID(f models.Finding) string {
	d := xxhash.New()
	for _, s := range []string{f.RuleID, f.Region, f.Resource, strconv.Itoa(int(f.Status)), f.Message} {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// ComputeSummary counts findings per status and FAIL findings per severity.
func ComputeSummary(findings []models.Finding, rulesEvaluated, ruleErrors int) models.Summary {
	s := models.Summary{
		TotalFindings:  len(findings),
		RulesEvaluated: rulesEvaluated,
		RuleErrors:     ruleErrors,
	}
	for _, f := range findings {
		switch f.Status {
		case models.StatusPass:
			s.Pass++
		case models.StatusWarn:
			s.Warn++
		case models.StatusFail:
			s.Fail++
			if s.FailBySeverity == nil {
				s.FailBySeverity = make(map[models.Severity]int)
			}
			s.FailBySeverity[f.Severity]++
		case models.StatusUnknown:
			s.Unknown++
		}
	}
	return s
}
