package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
)

// Status is the outcome code of a single finding. It is encoded in JSON as
// its integer value.
type Status int

const (
	StatusPass    Status = 0
	StatusWarn    Status = 1
	StatusFail    Status = 2
	StatusUnknown Status = 3
)

var statusNames = [...]string{"PASS", "WARN", "FAIL", "UNKNOWN"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus parses a status name (case-insensitive).
func ParseStatus(name string) (Status, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == upper {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Severity represents the impact level of a rule.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Finding is one result line emitted by a rule.
//
// Rules fill Status, Message, Region, Resource and RawError. The aggregator
// stamps the rule identity fields and the deterministic ID.
type Finding struct {
	ID         string            `json:"id"`
	RuleID     string            `json:"rule_id"`
	Title      string            `json:"title,omitempty"`
	Category   string            `json:"category,omitempty"`
	Domain     string            `json:"domain,omitempty"`
	Severity   Severity          `json:"severity,omitempty"`
	Status     Status            `json:"status"`
	Message    string            `json:"message"`
	Region     string            `json:"region"`
	Resource   string            `json:"resource,omitempty"`
	RawError   string            `json:"raw_error,omitempty"`
	Compliance map[string]string `json:"compliance,omitempty"`
}

// RuleError records a framework failure of one rule: a returned error or a
// recovered panic. It never carries data-sourcing problems, which are UNKNOWN
// findings instead.
type RuleError struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// Summary aggregates finding counts for a report.
type Summary struct {
	TotalFindings int `json:"total_findings"`
	Pass          int `json:"pass"`
	Warn          int `json:"warn"`
	Fail          int `json:"fail"`
	Unknown       int `json:"unknown"`

	// FailBySeverity counts FAIL findings per rule severity.
	FailBySeverity map[Severity]int `json:"fail_by_severity,omitempty"`

	RulesEvaluated int `json:"rules_evaluated"`
	RuleErrors     int `json:"rule_errors"`
}

// AuditReport is the top-level output of a scan or an offline evaluation.
type AuditReport struct {
	ReportID    string      `json:"report_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Provider    string      `json:"provider"`
	Account     string      `json:"account,omitempty"`
	Regions     []string    `json:"regions,omitempty"`
	Summary     Summary     `json:"summary"`
	Findings    []Finding   `json:"findings"`
	RuleErrors  []RuleError `json:"rule_errors,omitempty"`

	// Metadata carries optional provider-specific key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Snapshot is the cache the findings were computed from, when requested.
	Snapshot *cache.Snapshot `json:"snapshot,omitempty"`
}
