// Package collect runs provider collectors against a per-scan cache.Store.
//
// A Collector declares which cache key it populates and which keys it
// depends on. The Orchestrator resolves those edges into a DAG, runs every
// collector once its upstreams are done, and fans the collector's targets
// out over a bounded worker pool. Collectors never write to the store
// themselves; the orchestrator records exactly one entry per target.
package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
)

// DefaultFanOut bounds concurrent fetches of a single collector.
const DefaultFanOut = 15

// ErrUpstreamUnavailable is wrapped by Targets when the collector's upstream
// enumeration failed or never ran. The orchestrator marks the key skipped.
var ErrUpstreamUnavailable = errors.New("upstream collection unavailable")

// Descriptor is the static identity of a collector.
type Descriptor struct {
	// Key is the cache key this collector writes.
	Key cache.Key

	// DependsOn lists keys whose collectors must finish first.
	DependsOn []cache.Key

	// FanOut overrides DefaultFanOut when positive.
	FanOut int
}

// Target is one unit of work for a collector: one provider call whose result
// lands at Key.At(Scope).
type Target struct {
	Scope cache.Scope

	// Region is the provider region the call is issued against. Empty for
	// global calls.
	Region string

	// Parent is the upstream scope an item was enumerated from.
	Parent cache.Scope

	// Item is the upstream element a dependent collector fetches details for.
	Item any
}

// ScanConfig carries the scope catalogue for one scan.
type ScanConfig struct {
	// Regions to collect from. Global collectors ignore it.
	Regions []string

	// Zones maps a region to its zones for zonal collectors.
	Zones map[string][]string

	// MaxConcurrency caps in-flight fetches across all collectors.
	MaxConcurrency int

	// FanOut is the default per-collector limit; Descriptor.FanOut wins.
	FanOut int
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.FanOut <= 0 {
		c.FanOut = DefaultFanOut
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = c.FanOut * 4
	}
	return c
}

// Collector populates one cache key.
type Collector interface {
	Descriptor() Descriptor

	// Targets enumerates the scopes to fetch. It may read upstream entries
	// from r; those are complete by the time Targets is called.
	Targets(r cache.Reader, cfg ScanConfig) ([]Target, error)

	// Fetch performs one provider call. The returned error is recorded in
	// the store, never propagated.
	Fetch(ctx context.Context, t Target) (any, error)
}

// FetchFunc performs one provider call for a target.
type FetchFunc func(ctx context.Context, t Target) (any, error)

type funcCollector struct {
	desc    Descriptor
	targets func(r cache.Reader, cfg ScanConfig) ([]Target, error)
	fetch   FetchFunc
}

func (c *funcCollector) Descriptor() Descriptor { return c.desc }

func (c *funcCollector) Targets(r cache.Reader, cfg ScanConfig) ([]Target, error) {
	return c.targets(r, cfg)
}

func (c *funcCollector) Fetch(ctx context.Context, t Target) (any, error) {
	return c.fetch(ctx, t)
}

// Global returns a collector issuing a single call at cache.ScopeGlobal.
func Global(key cache.Key, fetch FetchFunc) Collector {
	return &funcCollector{
		desc: Descriptor{Key: key},
		targets: func(cache.Reader, ScanConfig) ([]Target, error) {
			return []Target{{Scope: cache.ScopeGlobal}}, nil
		},
		fetch: fetch,
	}
}

// Regional returns a collector issuing one call per configured region.
func Regional(key cache.Key, fetch FetchFunc) Collector {
	return &funcCollector{
		desc: Descriptor{Key: key},
		targets: func(_ cache.Reader, cfg ScanConfig) ([]Target, error) {
			out := make([]Target, 0, len(cfg.Regions))
			for _, region := range cfg.Regions {
				out = append(out, Target{Scope: cache.Scope(region), Region: region})
			}
			return out, nil
		},
		fetch: fetch,
	}
}

// Zonal returns a collector issuing one call per zone of every configured
// region. Regions without known zones are skipped.
func Zonal(key cache.Key, fetch FetchFunc) Collector {
	return &funcCollector{
		desc: Descriptor{Key: key},
		targets: func(_ cache.Reader, cfg ScanConfig) ([]Target, error) {
			var out []Target
			for _, region := range cfg.Regions {
				for _, zone := range cfg.Zones[region] {
					out = append(out, Target{Scope: cache.Scope(zone), Region: region})
				}
			}
			return out, nil
		},
		fetch: fetch,
	}
}

// WithDependencies returns c with extra upstream edges. The collector's
// Targets still decide what to do with upstream data.
func WithDependencies(c Collector, deps ...cache.Key) Collector {
	return &depCollector{Collector: c, deps: deps}
}

type depCollector struct {
	Collector
	deps []cache.Key
}

func (c *depCollector) Descriptor() Descriptor {
	d := c.Collector.Descriptor()
	d.DependsOn = append(append([]cache.Key(nil), d.DependsOn...), c.deps...)
	return d
}

// PerItem returns a dependent collector that fetches details for every item
// of upstream's successful entries. scopeOf maps an upstream item to the
// scope its detail entry is written at; it must be unique per item.
//
// If upstream was skipped, or none of its entries succeeded, Targets returns
// ErrUpstreamUnavailable. Failed upstream scopes are ignored when at least
// one other scope succeeded.
func PerItem[T any](
	key, upstream cache.Key,
	scopeOf func(parent cache.Scope, item T) cache.Scope,
	fetch func(ctx context.Context, t Target, item T) (any, error),
) Collector {
	return &funcCollector{
		desc: Descriptor{Key: key, DependsOn: []cache.Key{upstream}},
		targets: func(r cache.Reader, _ ScanConfig) ([]Target, error) {
			if reason, skipped := r.Skipped(upstream); skipped {
				return nil, fmt.Errorf("%s skipped (%s): %w", upstream, reason, ErrUpstreamUnavailable)
			}
			var (
				out       []Target
				succeeded int
				lastErr   error
			)
			for _, parent := range r.Scopes(upstream) {
				e, _ := r.Get(upstream.At(parent))
				items, err := cache.Items[T](e)
				if err != nil {
					lastErr = err
					continue
				}
				succeeded++
				region := string(parent)
				if parent == cache.ScopeGlobal {
					region = ""
				}
				for _, item := range items {
					out = append(out, Target{
						Scope:  scopeOf(parent, item),
						Region: region,
						Parent: parent,
						Item:   item,
					})
				}
			}
			if succeeded == 0 {
				if lastErr != nil {
					return nil, fmt.Errorf("%s: %v: %w", upstream, lastErr, ErrUpstreamUnavailable)
				}
				return nil, fmt.Errorf("%s has no entries: %w", upstream, ErrUpstreamUnavailable)
			}
			return out, nil
		},
		fetch: func(ctx context.Context, t Target) (any, error) {
			item, ok := t.Item.(T)
			if !ok {
				return nil, fmt.Errorf("target %s carries %T", t.Scope, t.Item)
			}
			return fetch(ctx, t, item)
		},
	}
}
