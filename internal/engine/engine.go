package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// ReportFormat controls the CLI output format.
type ReportFormat string

const (
	ReportFormatJSON  ReportFormat = "json"
	ReportFormatTable ReportFormat = "table"
)

// ScanOptions configures a single scan or offline evaluation.
// It is the sole input to Scanner.Scan and Scanner.Evaluate.
type ScanOptions struct {
	// Account identifies the audited account, project, organisation or
	// cluster. It is passed to rules for resource naming.
	Account string

	// Profile is the credential profile or kubeconfig context in use.
	Profile string

	// Regions is the region catalogue to collect and evaluate.
	Regions []string

	// Zones maps a region to its zones for zonal providers.
	Zones map[string][]string

	// MaxConcurrency bounds in-flight provider calls across all collectors.
	// Zero selects the orchestrator default.
	MaxConcurrency int

	// FanOut bounds in-flight calls of one collector. Zero selects
	// collect.DefaultFanOut.
	FanOut int

	// IncludeSnapshot attaches the cache snapshot to the report.
	IncludeSnapshot bool
}

// Engine runs a full scan: collection, evaluation and aggregation.
//
// Engine never calls a provider SDK directly; it delegates to the collectors
// it was built with.
type Engine interface {
	Scan(ctx context.Context, opts ScanOptions) (*models.AuditReport, error)
	Evaluate(ctx context.Context, reader cache.Reader, opts ScanOptions) (*models.AuditReport, error)
}
