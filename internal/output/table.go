package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// ANSI color codes (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiRed     = "\033[0;31m"
	ansiYellow  = "\033[0;33m"
	ansiBlue    = "\033[0;34m"
	ansiGreen   = "\033[0;32m"
	ansiGrey    = "\033[0;90m"
)

// TableOptions controls which columns RenderTable renders and how cells are coloured.
type TableOptions struct {
	// Colored wraps status and severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// IncludeDomain adds a DOMAIN column.
	IncludeDomain bool

	// HidePassing drops PASS findings from the table.
	HidePassing bool

	// LocationLabel is the column header for the region/context column.
	// Defaults to "REGION". Use "CONTEXT" for Kubernetes scans.
	LocationLabel string
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorSeverity(sev models.Severity, colored bool) string {
	code := severityColor(sev)
	if !colored || code == "" {
		return string(sev)
	}
	return code + string(sev) + ansiReset
}

func severityColor(sev models.Severity) string {
	switch sev {
	case models.SeverityCritical:
		return ansiBoldRed
	case models.SeverityHigh:
		return ansiRed
	case models.SeverityMedium:
		return ansiYellow
	case models.SeverityLow:
		return ansiBlue
	}
	return ""
}

func statusColor(s models.Status) string {
	switch s {
	case models.StatusPass:
		return ansiGreen
	case models.StatusWarn:
		return ansiYellow
	case models.StatusFail:
		return ansiRed
	case models.StatusUnknown:
		return ansiGrey
	}
	return ""
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// coloredCell returns text padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
func coloredCell(text, code string, width int, colored bool) string {
	if !colored || code == "" {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
// A single-char ellipsis replaces the last rune when truncation occurs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// RenderTable writes a formatted findings table to w.
// Columns are dynamically selected based on opts; the separator line width is
// derived from the header row so all rows align correctly.
//
// Column order:
//
//	STATUS  SEVERITY  RULE  LOCATION  [DOMAIN]  RESOURCE  MESSAGE
func RenderTable(w io.Writer, findings []models.Finding, opts TableOptions) {
	if opts.LocationLabel == "" {
		opts.LocationLabel = "REGION"
	}
	if opts.HidePassing {
		kept := make([]models.Finding, 0, len(findings))
		for _, f := range findings {
			if f.Status != models.StatusPass {
				kept = append(kept, f)
			}
		}
		findings = kept
	}

	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}

	// Fixed column display widths.
	const (
		wStatus   = 8
		wSeverity = 9
		wRule     = 36
		wLocation = 15
		wDomain   = 20
		wResource = 40
		wMessage  = 60
	)

	var hb strings.Builder
	hb.WriteString(fmt.Sprintf("%-*s", wStatus, "STATUS"))
	hb.WriteString(fmt.Sprintf("  %-*s", wSeverity, "SEVERITY"))
	hb.WriteString(fmt.Sprintf("  %-*s", wRule, "RULE"))
	hb.WriteString(fmt.Sprintf("  %-*s", wLocation, opts.LocationLabel))
	if opts.IncludeDomain {
		hb.WriteString(fmt.Sprintf("  %-*s", wDomain, "DOMAIN"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wResource, "RESOURCE"))
	hb.WriteString(fmt.Sprintf("  %-*s", wMessage, "MESSAGE"))
	header := strings.TrimRight(hb.String(), " ")

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, f := range findings {
		var rb strings.Builder
		rb.WriteString(coloredCell(f.Status.String(), statusColor(f.Status), wStatus, opts.Colored))
		rb.WriteString("  " + coloredCell(string(f.Severity), severityColor(f.Severity), wSeverity, opts.Colored))
		rb.WriteString(fmt.Sprintf("  %-*s", wRule, truncateField(f.RuleID, wRule)))
		rb.WriteString(fmt.Sprintf("  %-*s", wLocation, truncateField(f.Region, wLocation)))
		if opts.IncludeDomain {
			rb.WriteString(fmt.Sprintf("  %-*s", wDomain, truncateField(f.Domain, wDomain)))
		}
		rb.WriteString(fmt.Sprintf("  %-*s", wResource, truncateField(f.Resource, wResource)))
		rb.WriteString("  " + ShortenMessage(f.Message, wMessage))
		fmt.Fprintln(w, rb.String())
	}
}

var severityOrder = []models.Severity{
	models.SeverityCritical,
	models.SeverityHigh,
	models.SeverityMedium,
	models.SeverityLow,
	models.SeverityInfo,
}

// RenderSummary writes the report header and status counts to w.
func RenderSummary(w io.Writer, report *models.AuditReport) {
	s := report.Summary

	fmt.Fprintf(w, "Provider: %s\n", report.Provider)
	if report.Account != "" {
		fmt.Fprintf(w, "Account:  %s\n", report.Account)
	}
	fmt.Fprintf(w, "Regions:  %d\n", len(report.Regions))
	fmt.Fprintf(w, "Rules:    %d evaluated, %d errors\n", s.RulesEvaluated, s.RuleErrors)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d  (PASS %d  WARN %d  FAIL %d  UNKNOWN %d)\n",
		s.TotalFindings, s.Pass, s.Warn, s.Fail, s.Unknown)

	if len(s.FailBySeverity) > 0 {
		fmt.Fprintln(w, "Failures by severity")
		for _, sev := range severityOrder {
			if n := s.FailBySeverity[sev]; n > 0 {
				fmt.Fprintf(w, "  %-10s  %d\n", sev, n)
			}
		}
	}

	if len(report.RuleErrors) > 0 {
		errs := make([]models.RuleError, len(report.RuleErrors))
		copy(errs, report.RuleErrors)
		sort.Slice(errs, func(i, j int) bool { return errs[i].RuleID < errs[j].RuleID })
		fmt.Fprintln(w, "Rule errors")
		for _, e := range errs {
			fmt.Fprintf(w, "  %s: %s\n", e.RuleID, e.Message)
		}
	}
}
