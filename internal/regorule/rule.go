// Package regorule loads custom posture rules written in Rego.
//
// Each .rego file is one rule. Its package must define a metadata object
// and a findings set:
//
//	package posture.custom.s3_tagged
//
//	metadata := {
//		"id": "CUSTOM_S3_NAMED",
//		"provider": "aws",
//		"title": "S3 bucket naming",
//		"severity": "LOW",
//		"apis": ["s3:listBuckets"],
//	}
//
//	findings contains {"status": "FAIL", "region": "global", "resource": b.name, "message": "bad name"} if {
//		some b in input.apis["s3:listBuckets"].global.data
//		not startswith(b.name, "corp-")
//	}
//
// The input document carries the scan settings and, for every declared API,
// each collected scope as {"data": ..., "error": "..."}.
package regorule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

// Rule is a rules.Rule backed by a prepared Rego query.
type Rule struct {
	file     string
	provider string
	meta     rules.Metadata
	query    rego.PreparedEvalQuery
}

var _ rules.Rule = (*Rule)(nil)

// ID returns the rule ID declared in metadata.
func (r *Rule) ID() string { return r.meta.ID }

// Metadata returns the declared metadata.
func (r *Rule) Metadata() rules.Metadata { return r.meta }

// Provider returns the provider the rule belongs to.
func (r *Rule) Provider() string { return r.provider }

// File returns the source file of the rule.
func (r *Rule) File() string { return r.file }

// scopeInput is the input shape of one cache entry.
type scopeInput struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// Evaluate builds the input from the declared APIs and turns every element
// of the findings set into a finding.
func (r *Rule) Evaluate(rctx *rules.RuleContext) error {
	apis := make(map[string]map[string]scopeInput, len(r.meta.APIs))
	for _, k := range r.meta.APIs {
		scopes := make(map[string]scopeInput)
		for _, scope := range rctx.Scopes(k) {
			l := rctx.Lookup(k.At(scope))
			if l.State == rules.Failed {
				scopes[string(scope)] = scopeInput{Error: l.Entry.ErrorMessage()}
				continue
			}
			v, err := cache.Value[any](l.Entry)
			if err != nil {
				return fmt.Errorf("decode %s: %w", k.At(scope), err)
			}
			scopes[string(scope)] = scopeInput{Data: v}
		}
		apis[k.String()] = scopes
	}

	params := rctx.Settings.Params[r.meta.ID]
	if params == nil {
		params = map[string]string{}
	}
	input, err := toGeneric(map[string]any{
		"account": rctx.Settings.Account,
		"regions": rctx.Settings.Regions,
		"zones":   rctx.Settings.Zones,
		"params":  params,
		"apis":    apis,
	})
	if err != nil {
		return err
	}

	rs, err := r.query.Eval(rctx.Context(), rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", r.file, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}
	set, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return fmt.Errorf("%s: findings must be a set, got %T", r.file, rs[0].Expressions[0].Value)
	}
	for _, elem := range set {
		f, err := decodeFinding(elem)
		if err != nil {
			return fmt.Errorf("%s: %w", r.file, err)
		}
		region := f.Region
		if region == "" {
			region = string(cache.ScopeGlobal)
		}
		if f.Status == models.StatusUnknown {
			rctx.AddError(f.Message, region, nil)
			continue
		}
		rctx.Add(f.Status, f.Message, region, f.Resource)
	}
	return nil
}

type regoFinding struct {
	Status   json.RawMessage `json:"status"`
	Message  string          `json:"message"`
	Region   string          `json:"region"`
	Resource string          `json:"resource"`
}

type finding struct {
	Status   models.Status
	Message  string
	Region   string
	Resource string
}

// decodeFinding accepts a status given either as name or as code.
func decodeFinding(v any) (finding, error) {
	var rf regoFinding
	if err := roundTrip(v, &rf); err != nil {
		return finding{}, fmt.Errorf("decode finding: %w", err)
	}
	if rf.Message == "" {
		return finding{}, fmt.Errorf("finding without message: %v", v)
	}

	f := finding{Message: rf.Message, Region: rf.Region, Resource: rf.Resource}
	var name string
	var code int
	switch {
	case json.Unmarshal(rf.Status, &name) == nil:
		s, err := models.ParseStatus(name)
		if err != nil {
			return finding{}, err
		}
		f.Status = s
	case json.Unmarshal(rf.Status, &code) == nil:
		if code < int(models.StatusPass) || code > int(models.StatusUnknown) {
			return finding{}, fmt.Errorf("status code %d out of range", code)
		}
		f.Status = models.Status(code)
	default:
		return finding{}, fmt.Errorf("finding has no status: %v", v)
	}
	return f, nil
}

func toGeneric(v any) (any, error) {
	var out any
	if err := roundTrip(v, &out); err != nil {
		return nil, fmt.Errorf("build rego input: %w", err)
	}
	return out, nil
}

func roundTrip(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func normaliseSeverity(s string) (models.Severity, error) {
	sev := models.Severity(strings.ToUpper(strings.TrimSpace(s)))
	switch sev {
	case models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInfo:
		return sev, nil
	}
	return "", fmt.Errorf("invalid severity %q", s)
}
