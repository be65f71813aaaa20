package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

const regionGlobal = "global"

// decode returns the items of a successful lookup. A decode failure is
// reported as one UNKNOWN finding and ok is false.
func decode[T any](rctx *RuleContext, l Lookup, region, what string) (items []T, ok bool) {
	items, err := cache.Items[T](l.Entry)
	if err != nil {
		rctx.AddError(fmt.Sprintf("Unable to decode %s: %v", what, err), region, err)
		return nil, false
	}
	return items, true
}

// decodeValue is decode for single-valued entries.
func decodeValue[T any](rctx *RuleContext, l Lookup, region, what string) (v T, ok bool) {
	v, err := cache.Value[T](l.Entry)
	if err != nil {
		rctx.AddError(fmt.Sprintf("Unable to decode %s: %v", what, err), region, err)
		return v, false
	}
	return v, true
}

// unableToQuery reports a failed lookup as UNKNOWN.
func unableToQuery(rctx *RuleContext, l Lookup, region, what string) {
	rctx.AddError(fmt.Sprintf("Unable to query for %s: %s", what, l.Entry.ErrorMessage()), region, l.Err())
}

// forEachRegion visits key in every scanned region. Regions never collected
// are skipped and failed regions become one UNKNOWN finding each; fn sees
// only empty or populated lookups.
func forEachRegion(rctx *RuleContext, key cache.Key, what string, fn func(region string, l Lookup)) {
	for _, region := range rctx.Settings.Regions {
		l := rctx.Lookup(key.At(cache.Scope(region)))
		switch l.State {
		case Absent:
			continue
		case Failed:
			unableToQuery(rctx, l, region, what)
			continue
		}
		fn(region, l)
	}
}

// global looks up key at the global scope. It returns ok only for populated
// or empty entries; a failure is reported as UNKNOWN. When required is set,
// an absent entry is reported as UNKNOWN too, otherwise it is skipped
// silently.
func global(rctx *RuleContext, key cache.Key, what string, required bool) (Lookup, bool) {
	l := rctx.Lookup(key.At(cache.ScopeGlobal))
	switch l.State {
	case Absent:
		if required {
			rctx.AddError(fmt.Sprintf("Unable to query for %s: no data collected", what), regionGlobal, nil)
		}
		return l, false
	case Failed:
		unableToQuery(rctx, l, regionGlobal, what)
		return l, false
	}
	return l, true
}

// pass and fail are shorthands for the two common statuses.
func pass(rctx *RuleContext, msg, region, resource string) {
	rctx.Add(models.StatusPass, msg, region, resource)
}

func fail(rctx *RuleContext, msg, region, resource string) {
	rctx.Add(models.StatusFail, msg, region, resource)
}
