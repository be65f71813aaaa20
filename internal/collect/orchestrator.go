package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
)

const tracerName = "github.com/pankaj-dahiya-devops/posture/internal/collect"

// Observer receives per-fetch events. Implementations must be safe for
// concurrent use.
type Observer interface {
	FetchStarted(p cache.Path)
	FetchFinished(p cache.Path, elapsed time.Duration, err error)
	CollectorSkipped(k cache.Key, reason string)
}

type nopObserver struct{}

func (nopObserver) FetchStarted(cache.Path)                         {}
func (nopObserver) FetchFinished(cache.Path, time.Duration, error) {}
func (nopObserver) CollectorSkipped(cache.Key, string)             {}

// Orchestrator runs a set of collectors against one store.
type Orchestrator struct {
	collectors []Collector
	logger     zerolog.Logger
	observer   Observer
	tracer     trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver registers a fetch observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// NewOrchestrator returns an orchestrator for collectors.
func NewOrchestrator(collectors []Collector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		collectors: collectors,
		logger:     zerolog.Nop(),
		observer:   nopObserver{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run validates the collector graph and populates store.
//
// The only errors returned are graph validation errors, reported before any
// fetch starts. Provider errors are recorded as failed entries. When ctx is
// cancelled, fetches that have not started are dropped and their paths stay
// absent; Run returns once every started fetch has been recorded.
func (o *Orchestrator) Run(ctx context.Context, store *cache.Store, cfg ScanConfig) error {
	g, err := NewGraph(o.collectors)
	if err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	order := g.Order()
	o.logger.Debug().
		Int("collectors", len(order)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("collection graph validated")

	done := make(map[cache.Key]chan struct{}, len(order))
	for _, k := range order {
		done[k] = make(chan struct{})
	}

	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	var wg sync.WaitGroup
	for _, k := range order {
		c := g.Collector(k)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[k])
			for _, dep := range c.Descriptor().DependsOn {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			o.runCollector(ctx, store, sem, c, cfg)
		}()
	}
	wg.Wait()
	return nil
}

func (o *Orchestrator) runCollector(
	ctx context.Context,
	store *cache.Store,
	sem *semaphore.Weighted,
	c Collector,
	cfg ScanConfig,
) {
	desc := c.Descriptor()
	ctx, span := o.tracer.Start(ctx, "collect "+desc.Key.String())
	defer span.End()

	targets, err := safeTargets(c, store, cfg)
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			o.logger.Warn().Err(err).Str("collector", desc.Key.String()).Msg("target enumeration failed")
			span.RecordError(err)
		}
		o.skip(store, desc.Key, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("posture.targets", len(targets)))

	fanOut := desc.FanOut
	if fanOut <= 0 {
		fanOut = cfg.FanOut
	}
	var eg errgroup.Group
	eg.SetLimit(fanOut)
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			o.fetch(ctx, store, c, desc.Key.At(t.Scope), t)
			return nil
		})
	}
	_ = eg.Wait()
}

func (o *Orchestrator) skip(store *cache.Store, k cache.Key, reason string) {
	if err := store.MarkSkipped(k, reason); err != nil {
		o.logger.Error().Err(err).Str("collector", k.String()).Msg("mark skipped")
		return
	}
	o.observer.CollectorSkipped(k, reason)
	o.logger.Info().Str("collector", k.String()).Str("reason", reason).Msg("collector skipped")
}

func (o *Orchestrator) fetch(ctx context.Context, store *cache.Store, c Collector, p cache.Path, t Target) {
	ctx, span := o.tracer.Start(ctx, "fetch "+p.String(), trace.WithAttributes(
		attribute.String("posture.collector", p.Key.String()),
		attribute.String("posture.scope", string(p.Scope)),
	))
	defer span.End()

	o.observer.FetchStarted(p)
	start := time.Now()
	data, err := safeFetch(ctx, c, t)
	o.observer.FetchFinished(p, time.Since(start), err)

	entry := cache.Entry{Data: data}
	if err != nil {
		entry = cache.Entry{Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn().
			Err(err).
			Str("collector", p.Key.String()).
			Str("scope", string(p.Scope)).
			Msg("fetch failed")
	}
	if perr := store.Put(p, entry); perr != nil {
		o.logger.Error().Err(perr).Str("path", p.String()).Msg("store write rejected")
	}
}

// safeFetch converts a panicking fetch into an error entry.
func safeFetch(ctx context.Context, c Collector, t Target) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("collector panic: %v", r)
		}
	}()
	return c.Fetch(ctx, t)
}

func safeTargets(c Collector, r cache.Reader, cfg ScanConfig) (targets []Target, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			targets = nil
			err = fmt.Errorf("collector panic in targets: %v", rec)
		}
	}()
	return c.Targets(r, cfg)
}
