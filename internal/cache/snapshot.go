package cache

import (
	"encoding/json"
	"fmt"
	"io"
)

// Snapshot is the serialisable form of a Store. Maps are keyed by
// Key.String() so encoding/json emits them in sorted order.
type Snapshot struct {
	Entries map[string]map[Scope]Entry `json:"entries"`
	Skipped map[string]string          `json:"skipped,omitempty"`
}

// Snapshot copies the store contents.
func (s *Store) Snapshot() Snapshot {
	if !s.frozen.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	snap := Snapshot{
		Entries: make(map[string]map[Scope]Entry, len(s.entries)),
	}
	for k, scopes := range s.entries {
		cp := make(map[Scope]Entry, len(scopes))
		for scope, e := range scopes {
			cp[scope] = e
		}
		snap.Entries[k.String()] = cp
	}
	if len(s.skipped) > 0 {
		snap.Skipped = make(map[string]string, len(s.skipped))
		for k, reason := range s.skipped {
			snap.Skipped[k.String()] = reason
		}
	}
	return snap
}

// WriteJSON encodes the snapshot as indented JSON.
func (snap Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}
	return nil
}

// Restore builds a frozen Store from snap.
func (snap Snapshot) Restore() (*Store, error) {
	store := NewStore()
	for ks, scopes := range snap.Entries {
		k, err := ParseKey(ks)
		if err != nil {
			return nil, err
		}
		for scope, e := range scopes {
			if err := store.Put(k.At(scope), e); err != nil {
				return nil, err
			}
		}
	}
	for ks, reason := range snap.Skipped {
		k, err := ParseKey(ks)
		if err != nil {
			return nil, err
		}
		if err := store.MarkSkipped(k, reason); err != nil {
			return nil, err
		}
	}
	store.Freeze()
	return store, nil
}

// LoadSnapshot decodes a snapshot written by WriteJSON and returns a frozen
// store ready for offline evaluation.
func LoadSnapshot(r io.Reader) (*Store, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode cache snapshot: %w", err)
	}
	return snap.Restore()
}
