package cache

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.trai.ch/zerr"
)

var (
	// ErrDuplicateWrite is returned when a path is written a second time.
	// It always indicates a collector wiring bug.
	ErrDuplicateWrite = zerr.New("cache path already written")

	// ErrStoreFrozen is returned by writes after the collection phase ended.
	ErrStoreFrozen = zerr.New("cache store is frozen")
)

// Reader is the read-only view of a Store handed to rules.
type Reader interface {
	// Get returns the entry at p. ok is false when p was never written.
	Get(p Path) (Entry, bool)

	// Skipped returns the reason a dependent collector for k was skipped.
	Skipped(k Key) (string, bool)

	// Scopes returns every scope written under k, sorted.
	Scopes(k Key) []Scope
}

// Store is the write-once snapshot owned by a single scan.
//
// Writes are serialised by a mutex. Once Freeze is called the store is
// immutable and reads no longer take the lock.
type Store struct {
	mu      sync.RWMutex
	frozen  atomic.Bool
	entries map[Key]map[Scope]Entry
	skipped map[Key]string
}

// NewStore returns an empty store for one scan.
func NewStore() *Store {
	return &Store{
		entries: make(map[Key]map[Scope]Entry),
		skipped: make(map[Key]string),
	}
}

// Put writes e at p. A second write to the same path returns ErrDuplicateWrite
// and leaves the first entry untouched.
func (s *Store) Put(p Path, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen.Load() {
		return zerr.With(ErrStoreFrozen, "path", p.String())
	}
	scopes, ok := s.entries[p.Key]
	if !ok {
		scopes = make(map[Scope]Entry)
		s.entries[p.Key] = scopes
	}
	if _, exists := scopes[p.Scope]; exists {
		return zerr.With(ErrDuplicateWrite, "path", p.String())
	}
	scopes[p.Scope] = e
	return nil
}

// MarkSkipped records that no entry will ever be written under k.
func (s *Store) MarkSkipped(k Key, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen.Load() {
		return zerr.With(ErrStoreFrozen, "key", k.String())
	}
	if _, exists := s.skipped[k]; exists {
		return zerr.With(ErrDuplicateWrite, "key", k.String())
	}
	s.skipped[k] = reason
	return nil
}

// Freeze ends the collection phase. Further writes fail.
func (s *Store) Freeze() {
	s.mu.Lock()
	s.frozen.Store(true)
	s.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (s *Store) Frozen() bool {
	return s.frozen.Load()
}

// Get implements Reader.
func (s *Store) Get(p Path) (Entry, bool) {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	e, ok := s.entries[p.Key][p.Scope]
	return e, ok
}

// Skipped implements Reader.
func (s *Store) Skipped(k Key) (string, bool) {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	reason, ok := s.skipped[k]
	return reason, ok
}

// Scopes implements Reader.
func (s *Store) Scopes(k Key) []Scope {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	scopes := make([]Scope, 0, len(s.entries[k]))
	for scope := range s.entries[k] {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes
}

// Len returns the number of written entries across all keys.
func (s *Store) Len() int {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	n := 0
	for _, scopes := range s.entries {
		n += len(scopes)
	}
	return n
}
