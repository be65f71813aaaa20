package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
)

var (
	projectsGet    = cache.NewKey("projects", "get")
	computeList    = cache.NewKey("compute", "list")
	reposList      = cache.NewKey("apps", "listRepos")
	deployKeysList = cache.NewKey("repos", "listDeployKeys")
)

type repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// countingObserver records fetch events and the peak number of in-flight
// fetches.
type countingObserver struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	started  map[cache.Path]int
	skipped  []cache.Key
}

func newCountingObserver() *countingObserver {
	return &countingObserver{started: make(map[cache.Path]int)}
}

func (o *countingObserver) FetchStarted(p cache.Path) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started[p]++
	o.inFlight++
	if o.inFlight > o.peak {
		o.peak = o.inFlight
	}
}

func (o *countingObserver) FetchFinished(cache.Path, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
}

func (o *countingObserver) CollectorSkipped(k cache.Key, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, k)
}

func zones(n int) ScanConfig {
	cfg := ScanConfig{Regions: []string{"us-central1"}, Zones: map[string][]string{}}
	for i := 0; i < n; i++ {
		cfg.Zones["us-central1"] = append(cfg.Zones["us-central1"], fmt.Sprintf("us-central1-%d", i))
	}
	return cfg
}

func TestOrchestrator_ExactlyOneEntryPerScope(t *testing.T) {
	var calls atomic.Int64
	c := Zonal(computeList, func(_ context.Context, tg Target) (any, error) {
		calls.Add(1)
		if tg.Scope == "us-central1-3" {
			return nil, errors.New("rate limited")
		}
		if tg.Scope == "us-central1-4" {
			return []string{}, nil
		}
		return []string{"vm-" + string(tg.Scope)}, nil
	})

	store := cache.NewStore()
	obs := newCountingObserver()
	require.NoError(t, NewOrchestrator([]Collector{c}, WithObserver(obs)).Run(context.Background(), store, zones(10)))

	assert.EqualValues(t, 10, calls.Load())
	assert.Len(t, store.Scopes(computeList), 10)
	for p, n := range obs.started {
		assert.Equal(t, 1, n, "path %s fetched %d times", p, n)
	}

	failed, ok := store.Get(computeList.At("us-central1-3"))
	require.True(t, ok)
	assert.Equal(t, "rate limited", failed.ErrorMessage())

	empty, ok := store.Get(computeList.At("us-central1-4"))
	require.True(t, ok)
	assert.True(t, empty.Empty())
}

func TestOrchestrator_RespectsGlobalCeiling(t *testing.T) {
	slow := func(_ context.Context, _ Target) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return []string{}, nil
	}
	collectors := []Collector{
		Zonal(computeList, slow),
		Zonal(cache.NewKey("disks", "list"), slow),
		Zonal(cache.NewKey("networks", "list"), slow),
	}
	cfg := zones(20)
	cfg.MaxConcurrency = 4

	obs := newCountingObserver()
	require.NoError(t, NewOrchestrator(collectors, WithObserver(obs)).Run(context.Background(), cache.NewStore(), cfg))
	assert.LessOrEqual(t, obs.peak, 4)
	assert.Positive(t, obs.peak)
}

func TestOrchestrator_RespectsFanOut(t *testing.T) {
	obs := newCountingObserver()
	c := Zonal(computeList, func(_ context.Context, _ Target) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	})
	cfg := zones(30)
	cfg.FanOut = 3
	cfg.MaxConcurrency = 100

	require.NoError(t, NewOrchestrator([]Collector{c}, WithObserver(obs)).Run(context.Background(), cache.NewStore(), cfg))
	assert.LessOrEqual(t, obs.peak, 3)
}

func TestOrchestrator_DependentRunsAfterUpstream(t *testing.T) {
	repos := Global(reposList, func(context.Context, Target) (any, error) {
		return []repo{{Owner: "octo", Name: "a"}, {Owner: "octo", Name: "b"}}, nil
	})
	keys := PerItem(deployKeysList, reposList,
		func(_ cache.Scope, r repo) cache.Scope { return cache.JoinScope(r.Owner, r.Name) },
		func(_ context.Context, _ Target, r repo) (any, error) {
			if r.Name == "b" {
				return nil, errors.New("not found")
			}
			return []string{"key-" + r.Name}, nil
		})

	store := cache.NewStore()
	require.NoError(t, NewOrchestrator([]Collector{keys, repos}).Run(context.Background(), store, ScanConfig{}))

	assert.Equal(t, []cache.Scope{"octo/a", "octo/b"}, store.Scopes(deployKeysList))
	e, _ := store.Get(deployKeysList.At("octo/b"))
	assert.True(t, e.Failed())
	_, skipped := store.Skipped(deployKeysList)
	assert.False(t, skipped)
}

func TestOrchestrator_SkipsDependentWhenUpstreamFailed(t *testing.T) {
	var detailCalls atomic.Int64
	repos := Global(reposList, func(context.Context, Target) (any, error) {
		return nil, errors.New("bad credentials")
	})
	keys := PerItem(deployKeysList, reposList,
		func(_ cache.Scope, r repo) cache.Scope { return cache.JoinScope(r.Owner, r.Name) },
		func(context.Context, Target, repo) (any, error) {
			detailCalls.Add(1)
			return nil, nil
		})

	store := cache.NewStore()
	obs := newCountingObserver()
	require.NoError(t, NewOrchestrator([]Collector{repos, keys}, WithObserver(obs)).Run(context.Background(), store, ScanConfig{}))

	assert.Zero(t, detailCalls.Load())
	assert.Empty(t, store.Scopes(deployKeysList))
	reason, ok := store.Skipped(deployKeysList)
	require.True(t, ok)
	assert.Contains(t, reason, "bad credentials")
	assert.Equal(t, []cache.Key{deployKeysList}, obs.skipped)
}

func TestOrchestrator_EmptyUpstreamIsNotSkipped(t *testing.T) {
	repos := Global(reposList, func(context.Context, Target) (any, error) {
		return []repo{}, nil
	})
	keys := PerItem(deployKeysList, reposList,
		func(_ cache.Scope, r repo) cache.Scope { return cache.Scope(r.Name) },
		func(context.Context, Target, repo) (any, error) { return nil, nil })

	store := cache.NewStore()
	require.NoError(t, NewOrchestrator([]Collector{repos, keys}).Run(context.Background(), store, ScanConfig{}))
	_, skipped := store.Skipped(deployKeysList)
	assert.False(t, skipped)
	assert.Empty(t, store.Scopes(deployKeysList))
}

func TestOrchestrator_PanicIsRecordedAsError(t *testing.T) {
	boom := Global(projectsGet, func(context.Context, Target) (any, error) {
		panic("nil client")
	})
	ok := Zonal(computeList, func(context.Context, Target) (any, error) {
		return []string{}, nil
	})

	store := cache.NewStore()
	require.NoError(t, NewOrchestrator([]Collector{boom, ok}).Run(context.Background(), store, zones(2)))

	e, found := store.Get(projectsGet.At(cache.ScopeGlobal))
	require.True(t, found)
	assert.True(t, e.Failed())
	assert.Contains(t, e.ErrorMessage(), "nil client")
	assert.Len(t, store.Scopes(computeList), 2)
}

func TestOrchestrator_CycleRejectedBeforeAnyFetch(t *testing.T) {
	var calls atomic.Int64
	fetch := func(context.Context, Target) (any, error) {
		calls.Add(1)
		return nil, nil
	}
	a := WithDependencies(Global(projectsGet, fetch), computeList)
	b := WithDependencies(Global(computeList, fetch), projectsGet)

	err := NewOrchestrator([]Collector{a, b}).Run(context.Background(), cache.NewStore(), ScanConfig{})
	require.Error(t, err)
	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Contains(t, zErr.Metadata()["cycle"], "->")
	assert.Zero(t, calls.Load())
}

func TestOrchestrator_UnknownDependency(t *testing.T) {
	c := WithDependencies(Global(computeList, func(context.Context, Target) (any, error) { return nil, nil }), projectsGet)
	err := NewOrchestrator([]Collector{c}).Run(context.Background(), cache.NewStore(), ScanConfig{})
	require.Error(t, err)
	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, projectsGet.String(), zErr.Metadata()["dependency"])
}

func TestOrchestrator_DuplicateCollector(t *testing.T) {
	fetch := func(context.Context, Target) (any, error) { return nil, nil }
	err := NewOrchestrator([]Collector{Global(computeList, fetch), Regional(computeList, fetch)}).
		Run(context.Background(), cache.NewStore(), ScanConfig{})
	require.Error(t, err)
	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, computeList.String(), zErr.Metadata()["key"])
}

func TestOrchestrator_CancellationLeavesPathsAbsent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int64
	c := Zonal(computeList, func(ctx context.Context, _ Target) (any, error) {
		if started.Add(1) == 2 {
			cancel()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := zones(50)
	cfg.FanOut = 2
	cfg.MaxConcurrency = 2

	store := cache.NewStore()
	require.NoError(t, NewOrchestrator([]Collector{c}).Run(ctx, store, cfg))

	written := len(store.Scopes(computeList))
	assert.EqualValues(t, started.Load(), written, "every started fetch is recorded")
	assert.Less(t, written, 50, "cancelled fetches must stay absent")
}

func TestGraph_OrderPutsDependenciesFirst(t *testing.T) {
	fetch := func(context.Context, Target) (any, error) { return nil, nil }
	g, err := NewGraph([]Collector{
		PerItem(deployKeysList, reposList,
			func(_ cache.Scope, r repo) cache.Scope { return cache.Scope(r.Name) },
			func(context.Context, Target, repo) (any, error) { return nil, nil }),
		Global(reposList, fetch),
		Global(projectsGet, fetch),
	})
	require.NoError(t, err)

	pos := make(map[cache.Key]int)
	for i, k := range g.Order() {
		pos[k] = i
	}
	assert.Less(t, pos[reposList], pos[deployKeysList])
	assert.Len(t, g.Order(), 3)
}

func TestRegional_Targets(t *testing.T) {
	c := Regional(computeList, func(context.Context, Target) (any, error) { return nil, nil })
	targets, err := c.Targets(cache.NewStore(), ScanConfig{Regions: []string{"eu-west-1", "us-east-1"}})
	require.NoError(t, err)
	assert.Equal(t, []Target{
		{Scope: "eu-west-1", Region: "eu-west-1"},
		{Scope: "us-east-1", Region: "us-east-1"},
	}, targets)
}
