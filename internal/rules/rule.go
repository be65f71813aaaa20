package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// Metadata is the static description of a rule. It is exported by
// `posture rules list` and stamped onto every finding the rule emits.
type Metadata struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Domain      string          `json:"domain"`
	Severity    models.Severity `json:"severity"`
	Description string          `json:"description"`
	MoreInfo    string          `json:"more_info,omitempty"`
	Link        string          `json:"link,omitempty"`

	RecommendedAction string `json:"recommended_action"`

	// APIs lists the cache keys the rule reads.
	APIs []cache.Key `json:"apis"`

	// RealtimeTriggers lists provider event names that should cause a
	// re-evaluation of this rule.
	RealtimeTriggers []string `json:"realtime_triggers,omitempty"`

	// Compliance maps a framework name to the control the rule covers.
	Compliance map[string]string `json:"compliance,omitempty"`
}

// Rule is a single deterministic posture check.
// Rules must be stateless and safe to call concurrently. They read only the
// cache handed to them and must never call a provider SDK.
type Rule interface {
	// ID returns the unique, stable identifier for this rule.
	ID() string

	// Metadata returns the rule description and declared cache keys.
	Metadata() Metadata

	// Evaluate emits findings through rctx. The returned error is reserved
	// for framework failures; missing or failed data must be reported as
	// UNKNOWN findings instead.
	Evaluate(rctx *RuleContext) error
}

// Settings is the per-scan input shared by every rule.
type Settings struct {
	// Account identifies the audited account, project or organisation.
	Account string

	// Profile is the credential profile or kubeconfig context in use.
	Profile string

	// Regions is the region catalogue the scan covered.
	Regions []string

	// Zones maps a region to its zones for zonal providers.
	Zones map[string][]string

	// Params holds per-rule tuning values keyed by rule ID then name.
	Params map[string]map[string]string
}

// Param returns a per-rule setting or def when unset.
func (s Settings) Param(ruleID, name, def string) string {
	if v, ok := s.Params[ruleID][name]; ok {
		return v
	}
	return def
}

// LookupState classifies a cache path as seen by a rule.
type LookupState int

const (
	// Absent means the path was never written.
	Absent LookupState = iota
	// Failed means the provider call returned an error.
	Failed
	// Empty means the call succeeded with zero items.
	Empty
	// Populated means the call succeeded with data.
	Populated
)

func (s LookupState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Failed:
		return "failed"
	case Empty:
		return "empty"
	case Populated:
		return "populated"
	}
	return fmt.Sprintf("LookupState(%d)", int(s))
}

// Lookup is the classified result of reading one cache path.
type Lookup struct {
	State LookupState
	Entry cache.Entry
}

// Err returns the provider error of a Failed lookup, nil otherwise.
func (l Lookup) Err() error {
	return l.Entry.Err
}

// RuleContext is the sole input to Rule.Evaluate. It exposes the read-only
// cache, records every path the rule reads and collects emitted findings.
type RuleContext struct {
	Settings Settings

	ctx      context.Context
	ruleID   string
	reader   cache.Reader
	mu       sync.Mutex
	sources  map[cache.Path]cache.Entry
	findings []models.Finding
}

// NewRuleContext returns a context for one evaluation of ruleID.
func NewRuleContext(ruleID string, reader cache.Reader, settings Settings) *RuleContext {
	return &RuleContext{
		Settings: settings,
		ruleID:   ruleID,
		reader:   reader,
		sources:  make(map[cache.Path]cache.Entry),
	}
}

// Context returns the context of the evaluation. It is cancelled when the
// scan is aborted; rules doing non-trivial work should honour it.
func (c *RuleContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// WithContext sets the evaluation context and returns c.
func (c *RuleContext) WithContext(ctx context.Context) *RuleContext {
	c.ctx = ctx
	return c
}

// RuleID returns the ID of the rule being evaluated.
func (c *RuleContext) RuleID() string { return c.ruleID }

// Lookup reads p and classifies it. Written paths are recorded as sources.
func (c *RuleContext) Lookup(p cache.Path) Lookup {
	e, ok := c.reader.Get(p)
	if !ok {
		return Lookup{State: Absent}
	}
	c.mu.Lock()
	c.sources[p] = e
	c.mu.Unlock()

	switch {
	case e.Failed():
		return Lookup{State: Failed, Entry: e}
	case e.Empty():
		return Lookup{State: Empty, Entry: e}
	}
	return Lookup{State: Populated, Entry: e}
}

// Scopes returns the written scopes of k.
func (c *RuleContext) Scopes(k cache.Key) []cache.Scope {
	return c.reader.Scopes(k)
}

// Skipped reports whether the collector for k was skipped.
func (c *RuleContext) Skipped(k cache.Key) (string, bool) {
	return c.reader.Skipped(k)
}

// Add emits one finding.
func (c *RuleContext) Add(status models.Status, message, region, resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, models.Finding{
		RuleID:   c.ruleID,
		Status:   status,
		Message:  message,
		Region:   region,
		Resource: resource,
	})
}

// AddError emits an UNKNOWN finding carrying err as raw error. An empty
// message is replaced by the error text so UNKNOWN findings always explain
// themselves.
func (c *RuleContext) AddError(message, region string, err error) {
	raw := ""
	if err != nil {
		raw = err.Error()
	}
	if message == "" {
		message = raw
	}
	if message == "" {
		message = "Unable to query data"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, models.Finding{
		RuleID:   c.ruleID,
		Status:   models.StatusUnknown,
		Message:  message,
		Region:   region,
		RawError: raw,
	})
}

// Findings returns the findings emitted so far in emission order.
func (c *RuleContext) Findings() []models.Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Finding, len(c.findings))
	copy(out, c.findings)
	return out
}

// Sources returns the cache subset the rule read, keyed by path string.
func (c *RuleContext) Sources() map[string]cache.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]cache.Entry, len(c.sources))
	for p, e := range c.sources {
		out[p.String()] = e
	}
	return out
}

// RuleRegistry manages the set of active rules.
type RuleRegistry interface {
	// Register adds a rule to the registry. Panics on duplicate ID.
	Register(rule Rule)

	// All returns all registered rules in registration order.
	All() []Rule

	// Get returns the rule registered under id.
	Get(id string) (Rule, bool)
}
