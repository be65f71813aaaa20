// Package cache implements the per-scan snapshot of provider responses.
//
// A Store is keyed by Path (service, operation, scope). Every path is written
// at most once during collection and only read during evaluation. Three
// states are distinguishable for any path and rules must keep them apart:
//
//   - absent: the path was never written (collector did not run for that scope)
//   - empty: the provider answered successfully with zero items
//   - failed: the provider call returned an error
//
// A fourth, key-level state, skipped, records that a dependent collector did
// not run at all because its upstream enumeration was unavailable.
package cache

import (
	"fmt"
	"strings"
)

// Service names a provider API surface (e.g. "compute", "s3", "repos").
type Service string

// Operation names one call on a Service (e.g. "list", "listDeployKeys").
type Operation string

// Key identifies one category of provider data independently of scope.
type Key struct {
	Service   Service
	Operation Operation
}

// NewKey builds a Key from plain strings.
func NewKey(service, operation string) Key {
	return Key{Service: Service(service), Operation: Operation(operation)}
}

// ParseKey parses the "service:operation" form used in rule API declarations.
func ParseKey(s string) (Key, error) {
	svc, op, ok := strings.Cut(s, ":")
	if !ok || svc == "" || op == "" {
		return Key{}, fmt.Errorf("invalid cache key %q: want service:operation", s)
	}
	return NewKey(svc, op), nil
}

// String renders the key as "service:operation".
func (k Key) String() string {
	return string(k.Service) + ":" + string(k.Operation)
}

// MarshalText encodes the key in its "service:operation" form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "service:operation" form.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// At returns the Path addressing this key in scope.
func (k Key) At(scope Scope) Path {
	return Path{Key: k, Scope: scope}
}

// Scope is a region, zone, location, "global", or a hierarchical composite
// such as "owner/repository".
type Scope string

// ScopeGlobal is the scope of region-less collectors.
const ScopeGlobal Scope = "global"

const scopeSep = "/"

// JoinScope builds a hierarchical scope from its parts.
func JoinScope(parts ...string) Scope {
	return Scope(strings.Join(parts, scopeSep))
}

// Parts splits a hierarchical scope.
func (s Scope) Parts() []string {
	return strings.Split(string(s), scopeSep)
}

// Last returns the innermost component of a hierarchical scope.
func (s Scope) Last() string {
	parts := s.Parts()
	return parts[len(parts)-1]
}

// Path uniquely addresses one cache entry.
type Path struct {
	Key   Key
	Scope Scope
}

// String renders the path as "service:operation[scope]".
func (p Path) String() string {
	return fmt.Sprintf("%s[%s]", p.Key, p.Scope)
}
