package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

func decodeReport(t *testing.T, data string) models.AuditReport {
	t.Helper()
	var r models.AuditReport
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("decode report: %v\n%s", err, data)
	}
	return r
}

func TestScan_JSONReport(t *testing.T) {
	a, cfg := newTestApp(t)
	noPolicy := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := runCLI(t, a, cfg, "scan", "github", "--format", "json", "--policy", noPolicy)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	r := decodeReport(t, out)
	if r.Provider != "github" || r.Account != "acme" {
		t.Errorf("provider/account = %s/%s", r.Provider, r.Account)
	}
	if r.Summary.Fail != 1 || r.Summary.Pass != 1 {
		t.Errorf("summary = %+v; want 1 FAIL and 1 PASS", r.Summary)
	}
	for _, f := range r.Findings {
		if f.RuleID != "GITHUB_DEPLOY_KEY_WRITE_ACCESS" {
			t.Errorf("unexpected rule %s", f.RuleID)
		}
		if f.Status == models.StatusFail && !strings.Contains(f.Resource, "acme/api") {
			t.Errorf("failing resource = %s", f.Resource)
		}
	}
	if r.Snapshot != nil {
		t.Error("snapshot must not be embedded without --snapshot-out")
	}
}

func TestScan_TableOutput(t *testing.T) {
	a, cfg := newTestApp(t)
	noPolicy := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := runCLI(t, a, cfg, "scan", "github", "--policy", noPolicy)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"Provider: github", "GITHUB_DEPLOY_KEY_WRITE_ACCESS", "FAIL"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}
}

func TestScan_UnknownProvider(t *testing.T) {
	a, cfg := newTestApp(t)
	_, err := runCLI(t, a, cfg, "scan", "oracle")
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("err = %v; want unknown provider", err)
	}
}

func TestScan_PolicyEnforcementExitCode(t *testing.T) {
	a, cfg := newTestApp(t)
	pol := writeFile(t, t.TempDir(), "posture.yaml", "version: 1\nenforcement:\n  github:\n    fail_on_severity: MEDIUM\n")

	_, err := runCLI(t, a, cfg, "scan", "github", "--format", "json", "--policy", pol)
	var exitErr *exitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v; want exitError", err)
	}
	if exitErr.code != exitPolicyViolation {
		t.Errorf("exit code = %d; want %d", exitErr.code, exitPolicyViolation)
	}
}

func TestScan_PolicyDisablesRule(t *testing.T) {
	a, cfg := newTestApp(t)
	pol := writeFile(t, t.TempDir(), "posture.yaml",
		"version: 1\nrules:\n  GITHUB_DEPLOY_KEY_WRITE_ACCESS:\n    enabled: false\nenforcement:\n  github:\n    fail_on_severity: LOW\n")

	out, err := runCLI(t, a, cfg, "scan", "github", "--format", "json", "--policy", pol)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r := decodeReport(t, out); len(r.Findings) != 0 {
		t.Errorf("findings = %+v; want none", r.Findings)
	}
}

func TestScan_InvalidPolicy(t *testing.T) {
	a, cfg := newTestApp(t)
	pol := writeFile(t, t.TempDir(), "posture.yaml", "version: 1\nrules:\n  NOT_A_RULE:\n    enabled: false\n")

	_, err := runCLI(t, a, cfg, "scan", "github", "--policy", pol)
	if err == nil || !strings.Contains(err.Error(), "NOT_A_RULE") {
		t.Fatalf("err = %v; want unknown rule ID error", err)
	}
}

func TestScan_PolicyMayNameOtherProvidersRegoRules(t *testing.T) {
	a, _ := newTestApp(t)
	dir := t.TempDir()
	regoDir := filepath.Join(dir, "rego")
	if err := os.Mkdir(regoDir, 0o755); err != nil {
		t.Fatal(err)
	}
	src, err := os.ReadFile(filepath.Join("..", "..", "internal", "regorule", "testdata", "s3_naming.rego"))
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, regoDir, "s3_naming.rego", string(src))
	cfg := writeFile(t, dir, "config.yaml", "log:\n  level: error\nrego:\n  dir: "+regoDir+"\n")
	pol := writeFile(t, dir, "posture.yaml", "version: 1\nrules:\n  CUSTOM_S3_BUCKET_NAMING:\n    severity: HIGH\n")

	out, err := runCLI(t, a, cfg, "scan", "github", "--format", "json", "--policy", pol)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, f := range decodeReport(t, out).Findings {
		if f.RuleID == "CUSTOM_S3_BUCKET_NAMING" {
			t.Errorf("aws rego rule ran in a github scan: %+v", f)
		}
	}
}

func TestScan_SnapshotThenEvaluate(t *testing.T) {
	a, cfg := newTestApp(t)
	dir := t.TempDir()
	noPolicy := filepath.Join(dir, "missing.yaml")
	snap := filepath.Join(dir, "cache.json")
	reportPath := filepath.Join(dir, "report.json")

	if _, err := runCLI(t, a, cfg, "scan", "github", "--format", "summary",
		"--policy", noPolicy, "--snapshot-out", snap, "--output", reportPath); err != nil {
		t.Fatalf("scan: %v", err)
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	scanned := decodeReport(t, string(data))
	if scanned.Snapshot != nil {
		t.Error("report file must not embed the snapshot")
	}

	// Evaluate must not touch any provider.
	a.targets = nil
	out, err := runCLI(t, a, cfg, "evaluate", "--snapshot", snap, "--format", "json", "--policy", noPolicy)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	evaluated := decodeReport(t, out)
	if evaluated.Provider != "github" || evaluated.Account != "acme" {
		t.Errorf("provider/account = %s/%s", evaluated.Provider, evaluated.Account)
	}
	if len(evaluated.Findings) != len(scanned.Findings) {
		t.Fatalf("evaluate found %d findings; scan found %d", len(evaluated.Findings), len(scanned.Findings))
	}
	for i := range scanned.Findings {
		if evaluated.Findings[i].ID != scanned.Findings[i].ID || evaluated.Findings[i].Status != scanned.Findings[i].Status {
			t.Errorf("finding %d = %+v; want %+v", i, evaluated.Findings[i], scanned.Findings[i])
		}
	}
}

func TestEvaluate_MissingSnapshot(t *testing.T) {
	a, cfg := newTestApp(t)
	_, err := runCLI(t, a, cfg, "evaluate", "--snapshot", filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "read snapshot") {
		t.Fatalf("err = %v; want read error", err)
	}
}

func TestScan_HistoryAndDiff(t *testing.T) {
	a, cfg := newTestApp(t)
	dir := t.TempDir()
	noPolicy := filepath.Join(dir, "missing.yaml")
	db := filepath.Join(dir, "history.db")

	first, err := runCLI(t, a, cfg, "scan", "github", "--format", "json", "--policy", noPolicy, "--history", db)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := runCLI(t, a, cfg, "scan", "github", "--format", "summary", "--policy", noPolicy, "--history", db)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if !strings.Contains(second, "0 new, 0 resolved") {
		t.Errorf("second scan output missing diff line;\ngot:\n%s", second)
	}

	out, err := runCLI(t, a, cfg, "history", "list", "--db", db)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	firstID := decodeReport(t, first).ReportID
	if !strings.Contains(out, firstID) || strings.Count(out, "github") != 2 {
		t.Errorf("history list:\n%s", out)
	}

	out, err = runCLI(t, a, cfg, "history", "diff", firstID, "--db", db, "--format", "json")
	if err != nil {
		t.Fatalf("history diff: %v", err)
	}
	if !strings.Contains(out, `"head": "`+firstID+`"`) || !strings.Contains(out, "GITHUB_DEPLOY_KEY_WRITE_ACCESS") {
		t.Errorf("diff of the first scan must list its failure as new;\ngot:\n%s", out)
	}
}

func TestHistory_RequiresDatabase(t *testing.T) {
	a, cfg := newTestApp(t)
	_, err := runCLI(t, a, cfg, "history", "list")
	if err == nil || !strings.Contains(err.Error(), "no history database") {
		t.Fatalf("err = %v", err)
	}
}

func TestAzureTarget_RequiresSubscription(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "")
	a, _ := newTestApp(t)
	_, err := azureTarget(context.Background(), a, targetFlags{})
	if err == nil || !strings.Contains(err.Error(), "AZURE_SUBSCRIPTION_ID") {
		t.Fatalf("err = %v; want missing subscription error", err)
	}
}
