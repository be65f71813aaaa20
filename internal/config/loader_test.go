package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
scan:
  max_concurrency: 8
  fan_out: 4
  rule_concurrency: 2
  regions: [us-east-1, eu-west-1]
log:
  level: debug
  format: json
metrics:
  enabled: true
  addr: "0.0.0.0:9100"
history:
  path: /var/lib/posture/history.db
rego:
  dir: ./policies
`)
	cfg, err := NewFileLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.MaxConcurrency != 8 || cfg.Scan.FanOut != 4 || cfg.Scan.RuleConcurrency != 2 {
		t.Errorf("scan = %+v", cfg.Scan)
	}
	if len(cfg.Scan.Regions) != 2 || cfg.Scan.Regions[1] != "eu-west-1" {
		t.Errorf("regions = %v", cfg.Scan.Regions)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "0.0.0.0:9100" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.History.Path != "/var/lib/posture/history.db" || cfg.Rego.Dir != "./policies" {
		t.Errorf("history/rego = %+v %+v", cfg.History, cfg.Rego)
	}
}

func TestParse_DefaultsApplied(t *testing.T) {
	cfg, err := Parse([]byte("metrics:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Default()
	if cfg.Scan.MaxConcurrency != want.Scan.MaxConcurrency || cfg.Scan.FanOut != want.Scan.FanOut {
		t.Errorf("scan = %+v; want %+v", cfg.Scan, want.Scan)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Metrics.Addr != DefaultMetricsAddr {
		t.Errorf("metrics addr = %q; want default", cfg.Metrics.Addr)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Scan.RuleConcurrency == 0 {
		t.Error("defaults not applied to empty document")
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	_, err := Parse([]byte(`
scan:
  max_concurrency: 1000
log:
  level: loud
metrics:
  addr: "no-port"
`))
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, field := range []string{"MaxConcurrency", "Level", "Addr"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("scan:\n  threads: 4\n")); err == nil {
		t.Error("want error for unknown field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := NewFileLoader(missing).Load(); err == nil {
		t.Error("explicit config path must exist")
	}

	l := &FileLoader{path: missing, optional: true}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("optional Load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("defaults not applied: %+v", cfg.Log)
	}
	if l.ConfigPath() != missing {
		t.Errorf("ConfigPath = %q", l.ConfigPath())
	}
}
