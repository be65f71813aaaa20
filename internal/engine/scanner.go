package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/policy"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

// Scanner implements Engine for one provider.
// It owns the per-scan cache: a fresh store is created for every Scan,
// populated by the orchestrator, frozen, evaluated and dropped.
type Scanner struct {
	provider   string
	collectors []collect.Collector
	registry   rules.RuleRegistry
	policy     *policy.PolicyConfig

	logger          zerolog.Logger
	observer        collect.Observer
	ruleConcurrency int
	now             func() time.Time
	newID           func() string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPolicy applies cfg to rule selection, rule params and findings.
func WithPolicy(cfg *policy.PolicyConfig) Option {
	return func(s *Scanner) { s.policy = cfg }
}

// WithLogger sets the logger handed to the orchestrator and executor.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithObserver sets the collection observer, e.g. Prometheus metrics.
func WithObserver(obs collect.Observer) Option {
	return func(s *Scanner) { s.observer = obs }
}

// WithRuleConcurrency bounds concurrently evaluating rules.
func WithRuleConcurrency(n int) Option {
	return func(s *Scanner) { s.ruleConcurrency = n }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// NewScanner constructs a Scanner for provider wired to the supplied
// collectors and rule registry.
func NewScanner(
	provider string,
	collectors []collect.Collector,
	registry rules.RuleRegistry,
	opts ...Option,
) *Scanner {
	s := &Scanner{
		provider:   provider,
		collectors: collectors,
		registry:   registry,
		logger:     zerolog.Nop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the provider name the scanner audits.
func (s *Scanner) Provider() string { return s.provider }

// Scan collects provider data into a fresh cache and evaluates every enabled
// rule against it. It fails only when the collector graph is invalid; query
// errors surface as UNKNOWN findings and paths left absent by cancellation
// are skipped by the rules.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*models.AuditReport, error) {
	store := cache.NewStore()

	orchOpts := []collect.Option{collect.WithLogger(s.logger)}
	if s.observer != nil {
		orchOpts = append(orchOpts, collect.WithObserver(s.observer))
	}
	orch := collect.NewOrchestrator(s.collectors, orchOpts...)

	started := s.now()
	err := orch.Run(ctx, store, collect.ScanConfig{
		Regions:        opts.Regions,
		Zones:          opts.Zones,
		MaxConcurrency: opts.MaxConcurrency,
		FanOut:         opts.FanOut,
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", s.provider, err)
	}
	store.Freeze()

	s.logger.Info().
		Str("provider", s.provider).
		Int("entries", store.Len()).
		Dur("elapsed", s.now().Sub(started)).
		Msg("collection finished")

	// A cancelled collection still yields a report over what was gathered.
	report, err := s.Evaluate(context.WithoutCancel(ctx), store, opts)
	if err != nil {
		return nil, err
	}
	report.Metadata = map[string]any{
		"collectors":    len(s.collectors),
		"cache_entries": store.Len(),
	}
	if opts.IncludeSnapshot {
		snap := store.Snapshot()
		report.Snapshot = &snap
	}
	return report, nil
}

// Evaluate runs the enabled rules against reader, typically a store loaded
// from a snapshot, and assembles the report. Evaluating the same cache twice
// yields identical findings.
func (s *Scanner) Evaluate(ctx context.Context, reader cache.Reader, opts ScanOptions) (*models.AuditReport, error) {
	var selected []rules.Rule
	for _, r := range s.registry.All() {
		if policy.RuleEnabled(r.ID(), s.provider, s.policy) {
			selected = append(selected, r)
		}
	}

	settings := rules.Settings{
		Account: opts.Account,
		Profile: opts.Profile,
		Regions: opts.Regions,
		Zones:   opts.Zones,
		Params:  policy.RuleParams(s.policy),
	}

	exec := rules.NewExecutor()
	exec.Logger = s.logger
	if s.ruleConcurrency > 0 {
		exec.Concurrency = s.ruleConcurrency
	}
	results := exec.Run(ctx, reader, settings, selected)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", s.provider, err)
	}

	agg := Aggregate(results, s.registry)
	findings := policy.ApplyPolicy(agg.Findings, s.provider, s.policy)
	if findings == nil {
		findings = []models.Finding{}
	}

	return &models.AuditReport{
		ReportID:    s.newID(),
		GeneratedAt: s.now().UTC(),
		Provider:    s.provider,
		Account:     opts.Account,
		Regions:     opts.Regions,
		Summary:     ComputeSummary(findings, agg.RulesEvaluated, len(agg.RuleErrors)),
		Findings:    findings,
		RuleErrors:  agg.RuleErrors,
	}, nil
}
