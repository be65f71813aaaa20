package rules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// DefaultConcurrency bounds concurrently evaluating rules.
const DefaultConcurrency = 8

// Result is the single outcome of evaluating one rule.
type Result struct {
	RuleID   string
	Findings []models.Finding

	// Sources is the cache subset the rule read, keyed by path string.
	Sources map[string]cache.Entry

	// Err is a framework failure: a returned error or a recovered panic.
	// Findings emitted before the failure are kept.
	Err error
}

// Executor evaluates rules against a frozen cache.
type Executor struct {
	Concurrency int
	Logger      zerolog.Logger
}

// NewExecutor returns an executor with default concurrency and a discarding
// logger.
func NewExecutor() *Executor {
	return &Executor{Concurrency: DefaultConcurrency, Logger: zerolog.Nop()}
}

// Run evaluates every rule once and returns results in the order of rules.
// A failing or panicking rule never prevents the others from running. When
// ctx is cancelled, rules that have not started report ctx.Err() as Err.
func (x *Executor) Run(ctx context.Context, reader cache.Reader, settings Settings, rules []Rule) []Result {
	limit := x.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	results := make([]Result, len(rules))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, rule := range rules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{RuleID: rule.ID(), Err: err}
				return nil
			}
			results[i] = x.evaluate(ctx, rule, reader, settings)
			if results[i].Err != nil {
				x.Logger.Error().Err(results[i].Err).Str("rule", rule.ID()).Msg("rule evaluation failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (x *Executor) evaluate(ctx context.Context, rule Rule, reader cache.Reader, settings Settings) (res Result) {
	rctx := NewRuleContext(rule.ID(), reader, settings).WithContext(ctx)
	res.RuleID = rule.ID()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("rule %s panicked: %v", rule.ID(), r)
		}
		res.Findings = rctx.Findings()
		res.Sources = rctx.Sources()
	}()
	if err := rule.Evaluate(rctx); err != nil {
		res.Err = fmt.Errorf("rule %s: %w", rule.ID(), err)
	}
	return res
}
