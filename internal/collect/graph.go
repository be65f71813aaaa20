package collect

import (
	"sort"
	"strings"

	"go.trai.ch/zerr"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
)

var (
	// ErrCycleDetected is returned when collector dependencies form a cycle.
	ErrCycleDetected = zerr.New("collector dependency cycle detected")

	// ErrUnknownDependency is returned when a collector depends on a key no
	// registered collector writes.
	ErrUnknownDependency = zerr.New("collector depends on unknown key")

	// ErrDuplicateCollector is returned when two collectors write the same key.
	ErrDuplicateCollector = zerr.New("duplicate collector for key")
)

// Graph is the validated dependency graph of a collector set.
type Graph struct {
	collectors map[cache.Key]Collector
	order      []cache.Key
}

// NewGraph indexes collectors by key and validates their dependencies.
func NewGraph(collectors []Collector) (*Graph, error) {
	g := &Graph{collectors: make(map[cache.Key]Collector, len(collectors))}
	for _, c := range collectors {
		k := c.Descriptor().Key
		if _, exists := g.collectors[k]; exists {
			return nil, zerr.With(ErrDuplicateCollector, "key", k.String())
		}
		g.collectors[k] = c
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validate runs a DFS topological sort, visiting keys in sorted order so the
// resulting order is deterministic.
func (g *Graph) validate() error {
	keys := make([]cache.Key, 0, len(g.collectors))
	for k := range g.collectors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	g.order = make([]cache.Key, 0, len(keys))
	state := make(map[cache.Key]int) // 0: unvisited, 1: visiting, 2: done
	var path []cache.Key

	var visit func(k cache.Key) error
	visit = func(k cache.Key) error {
		state[k] = 1
		path = append(path, k)
		for _, dep := range g.collectors[k].Descriptor().DependsOn {
			if _, ok := g.collectors[dep]; !ok {
				err := zerr.With(ErrUnknownDependency, "collector", k.String())
				return zerr.With(err, "dependency", dep.String())
			}
			switch state[dep] {
			case 1:
				return cycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[k] = 2
		path = path[:len(path)-1]
		g.order = append(g.order, k)
		return nil
	}

	for _, k := range keys {
		if state[k] == 0 {
			if err := visit(k); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleError(path []cache.Key, dep cache.Key) error {
	start := 0
	for i, k := range path {
		if k == dep {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, k := range path[start:] {
		parts = append(parts, k.String())
	}
	parts = append(parts, dep.String())
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(parts, " -> "))
}

// Order returns collector keys with every dependency before its dependents.
func (g *Graph) Order() []cache.Key {
	return g.order
}

// Collector returns the collector registered for k.
func (g *Graph) Collector(k cache.Key) Collector {
	return g.collectors[k]
}
