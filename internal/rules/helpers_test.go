package rules

import (
	"errors"
	"testing"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// fixture builds a frozen store from path → entry pairs.
func fixture(t *testing.T, entries map[cache.Path]cache.Entry) *cache.Store {
	t.Helper()
	s := cache.NewStore()
	for p, e := range entries {
		if err := s.Put(p, e); err != nil {
			t.Fatalf("Put(%s): %v", p, err)
		}
	}
	s.Freeze()
	return s
}

// run evaluates rule against store and fails the test on a framework error.
func run(t *testing.T, rule Rule, store cache.Reader, settings Settings) []models.Finding {
	t.Helper()
	rctx := NewRuleContext(rule.ID(), store, settings)
	if err := rule.Evaluate(rctx); err != nil {
		t.Fatalf("%s.Evaluate: %v", rule.ID(), err)
	}
	return rctx.Findings()
}

func data(v any) cache.Entry       { return cache.Entry{Data: v} }
func failed(msg string) cache.Entry { return cache.Entry{Err: errors.New(msg)} }

func countStatus(findings []models.Finding, status models.Status) int {
	n := 0
	for _, f := range findings {
		if f.Status == status {
			n++
		}
	}
	return n
}

func TestForEachRegion_SkipsAbsentAndReportsFailed(t *testing.T) {
	key := models.KeyRDSInstances
	store := fixture(t, map[cache.Path]cache.Entry{
		key.At("us-east-1"): data([]models.AWSRDSInstance{}),
		key.At("eu-west-1"): failed("AccessDenied"),
	})
	rctx := NewRuleContext("TEST", store, Settings{Regions: []string{"us-east-1", "eu-west-1", "ap-south-1"}})

	var visited []string
	forEachRegion(rctx, key, "RDS instances", func(region string, l Lookup) {
		visited = append(visited, region+":"+l.State.String())
	})

	if len(visited) != 1 || visited[0] != "us-east-1:empty" {
		t.Errorf("visited = %v; want [us-east-1:empty]", visited)
	}
	findings := rctx.Findings()
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Status != models.StatusUnknown || f.Region != "eu-west-1" {
		t.Errorf("finding = %+v; want UNKNOWN in eu-west-1", f)
	}
	if f.Message != "Unable to query for RDS instances: AccessDenied" {
		t.Errorf("Message = %q", f.Message)
	}
	if f.RawError != "AccessDenied" {
		t.Errorf("RawError = %q; want AccessDenied", f.RawError)
	}
}

func TestRuleContext_SourcesRecordWrittenPathsOnly(t *testing.T) {
	store := fixture(t, map[cache.Path]cache.Entry{
		models.KeyS3Buckets.At(cache.ScopeGlobal): data([]models.AWSS3Bucket{{Name: "b"}}),
	})
	rctx := NewRuleContext("TEST", store, Settings{})
	rctx.Lookup(models.KeyS3Buckets.At(cache.ScopeGlobal))
	rctx.Lookup(models.KeyS3BucketPolicy.At("b"))

	sources := rctx.Sources()
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d: %v", len(sources), sources)
	}
	if _, ok := sources[models.KeyS3Buckets.At(cache.ScopeGlobal).String()]; !ok {
		t.Errorf("sources missing s3:listBuckets: %v", sources)
	}
}

func TestRuleContext_AddErrorAlwaysHasMessage(t *testing.T) {
	rctx := NewRuleContext("TEST", cache.NewStore(), Settings{})
	rctx.AddError("", "global", nil)
	rctx.AddError("", "global", errors.New("boom"))

	findings := rctx.Findings()
	if findings[0].Message == "" {
		t.Error("expected fallback message for nil error")
	}
	if findings[1].Message != "boom" {
		t.Errorf("Message = %q; want boom", findings[1].Message)
	}
	for _, f := range findings {
		if f.Status != models.StatusUnknown || f.RuleID != "TEST" {
			t.Errorf("finding = %+v; want UNKNOWN for TEST", f)
		}
	}
}

func TestSettings_Param(t *testing.T) {
	s := Settings{Params: map[string]map[string]string{
		"EKS_CONTROL_PLANE_LOGGING_DISABLED": {"log_types": "api"},
	}}
	if got := s.Param("EKS_CONTROL_PLANE_LOGGING_DISABLED", "log_types", "x"); got != "api" {
		t.Errorf("Param = %q; want api", got)
	}
	if got := s.Param("OTHER", "log_types", "x"); got != "x" {
		t.Errorf("Param = %q; want default x", got)
	}
}
