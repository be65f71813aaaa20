package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/engine"
	"github.com/pankaj-dahiya-devops/posture/internal/history"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/output"
	"github.com/pankaj-dahiya-devops/posture/internal/policy"
	"github.com/pankaj-dahiya-devops/posture/internal/regorule"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
	"github.com/pankaj-dahiya-devops/posture/internal/telemetry"
)

// reportFlags are shared by scan and evaluate.
type reportFlags struct {
	format      string
	output      string
	policyPath  string
	historyPath string
	hidePassing bool
	colored     bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "table", "Output format: table, json or summary")
	cmd.Flags().StringVar(&f.output, "output", "", "Write the full JSON report to this file path (in addition to stdout output)")
	cmd.Flags().StringVar(&f.policyPath, "policy", policy.DefaultPolicyFile, "Policy file (optional)")
	cmd.Flags().StringVar(&f.historyPath, "history", "", "Record the report in this sqlite database (default: history.path from config)")
	cmd.Flags().BoolVar(&f.hidePassing, "hide-passing", false, "Omit PASS findings from the table")
	cmd.Flags().BoolVar(&f.colored, "color", false, "Colour status and severity in the table")
}

// scanRecord is the file written by --snapshot-out: the cache plus the
// settings needed to evaluate it again.
type scanRecord struct {
	Provider string              `json:"provider"`
	Account  string              `json:"account,omitempty"`
	Profile  string              `json:"profile,omitempty"`
	Regions  []string            `json:"regions,omitempty"`
	Zones    map[string][]string `json:"zones,omitempty"`
	Cache    cache.Snapshot      `json:"cache"`
}

func newScanCmd(a *app) *cobra.Command {
	var (
		tf          targetFlags
		rf          reportFlags
		snapshotOut string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:       "scan <provider>",
		Short:     "Collect provider data and evaluate every enabled rule",
		Args:      cobra.ExactArgs(1),
		ValidArgs: rulepacks.Providers(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			ctx := cmd.Context()

			newTarget, ok := a.targets[provider]
			if !ok {
				return fmt.Errorf("unknown provider %q; want one of %s", provider, strings.Join(rulepacks.Providers(), ", "))
			}
			pol, reg, err := a.loadRules(ctx, provider, rf.policyPath)
			if err != nil {
				return err
			}
			tgt, err := newTarget(ctx, a, tf)
			if err != nil {
				return fmt.Errorf("resolve %s target: %w", provider, err)
			}

			opts := []engine.Option{
				engine.WithPolicy(pol),
				engine.WithLogger(a.logger),
				engine.WithRuleConcurrency(a.cfg.Scan.RuleConcurrency),
			}
			if metricsAddr == "" && a.cfg.Metrics.Enabled {
				metricsAddr = a.cfg.Metrics.Addr
			}
			var metrics *telemetry.Metrics
			if metricsAddr != "" {
				metrics = telemetry.NewMetrics()
				stop, err := metrics.Serve(metricsAddr)
				if err != nil {
					return fmt.Errorf("serve metrics on %s: %w", metricsAddr, err)
				}
				defer stop() //nolint:errcheck
				opts = append(opts, engine.WithObserver(metrics))
				a.logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
			}

			scanner := engine.NewScanner(provider, tgt.collectors, reg, opts...)
			report, err := scanner.Scan(ctx, engine.ScanOptions{
				Account:         tgt.account,
				Profile:         tgt.profile,
				Regions:         tgt.regions,
				Zones:           tgt.zones,
				MaxConcurrency:  a.cfg.Scan.MaxConcurrency,
				FanOut:          a.cfg.Scan.FanOut,
				IncludeSnapshot: snapshotOut != "",
			})
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			if metrics != nil {
				metrics.RecordReport(report)
			}

			if snapshotOut != "" {
				rec := scanRecord{
					Provider: provider,
					Account:  tgt.account,
					Profile:  tgt.profile,
					Regions:  tgt.regions,
					Zones:    tgt.zones,
					Cache:    *report.Snapshot,
				}
				if err := writeJSONFile(snapshotOut, rec); err != nil {
					return err
				}
				report.Snapshot = nil
			}

			return a.finish(ctx, cmd.OutOrStdout(), report, pol, rf, tgt.locationLabel)
		},
	}

	cmd.Flags().StringVar(&tf.profile, "profile", "", "AWS profile name (default: uses environment / default profile)")
	cmd.Flags().StringVar(&tf.project, "project", "", "GCP project ID (default: $GOOGLE_CLOUD_PROJECT)")
	cmd.Flags().StringVar(&tf.subscription, "subscription", "", "Azure subscription ID (default: $AZURE_SUBSCRIPTION_ID)")
	cmd.Flags().StringVar(&tf.org, "org", "", "GitHub organisation (default: repositories of the token's installation)")
	cmd.Flags().StringSliceVar(&tf.regions, "regions", nil, "Regions to scan (default: config scan.regions, then discovered regions)")
	cmd.Flags().StringSliceVar(&tf.contexts, "context", nil, "Kubeconfig context(s) to scan (default: current context)")
	cmd.Flags().BoolVar(&tf.discoverZones, "discover-zones", false, "Discover GCP zones from the Compute API instead of the built-in catalogue")
	cmd.Flags().StringVar(&snapshotOut, "snapshot-out", "", "Write the collected cache to this file for offline evaluation")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the scan")
	rf.register(cmd)
	return cmd
}

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		rf           reportFlags
		snapshotPath string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate rules against a cache written by scan --snapshot-out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, store, err := readScanRecord(snapshotPath)
			if err != nil {
				return err
			}
			pol, reg, err := a.loadRules(ctx, rec.Provider, rf.policyPath)
			if err != nil {
				return err
			}

			scanner := engine.NewScanner(rec.Provider, nil, reg,
				engine.WithPolicy(pol),
				engine.WithLogger(a.logger),
				engine.WithRuleConcurrency(a.cfg.Scan.RuleConcurrency),
			)
			report, err := scanner.Evaluate(ctx, store, engine.ScanOptions{
				Account: rec.Account,
				Profile: rec.Profile,
				Regions: rec.Regions,
				Zones:   rec.Zones,
			})
			if err != nil {
				return err
			}
			return a.finish(ctx, cmd.OutOrStdout(), report, pol, rf, locationLabels[rec.Provider])
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Cache file written by scan --snapshot-out")
	_ = cmd.MarkFlagRequired("snapshot")
	rf.register(cmd)
	return cmd
}

// locationLabels names the location column of providers whose scopes are
// not regions.
var locationLabels = map[string]string{
	"azure":      "LOCATION",
	"kubernetes": "CONTEXT",
}

// loadRules loads the policy, the custom Rego rules and the provider's
// registry, then validates the policy against the registered rule IDs.
func (a *app) loadRules(ctx context.Context, provider, policyPath string) (*policy.PolicyConfig, *rules.DefaultRuleRegistry, error) {
	loaded, err := a.regoRules(ctx)
	if err != nil {
		return nil, nil, err
	}
	extra := regorule.ForProvider(loaded, provider)
	reg, err := rulepacks.Registry(provider, extra...)
	if err != nil {
		return nil, nil, err
	}

	pol, err := policy.LoadOptional(policyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy: %w", err)
	}
	if pol != nil {
		if errs := policy.Validate(pol, allRuleIDs(loaded)); len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return nil, nil, fmt.Errorf("invalid policy %s:\n  %s", policyPath, strings.Join(msgs, "\n  "))
		}
	}
	return pol, reg, nil
}

// regoRules loads every custom Rego rule of the configured directory, for
// all providers. Without a directory it returns nothing.
func (a *app) regoRules(ctx context.Context) ([]*regorule.Rule, error) {
	dir := a.cfg.Rego.Dir
	if dir == "" {
		return nil, nil
	}
	loaded, err := regorule.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("dir", dir).Int("rules", len(loaded)).Msg("rego rules loaded")
	return loaded, nil
}

// finish renders the report, records history and applies enforcement.
func (a *app) finish(ctx context.Context, w io.Writer, report *models.AuditReport, pol *policy.PolicyConfig, rf reportFlags, label string) error {
	if rf.output != "" {
		if err := writeJSONFile(rf.output, report); err != nil {
			return err
		}
	}

	var diff *history.Diff
	historyPath := rf.historyPath
	if historyPath == "" {
		historyPath = a.cfg.History.Path
	}
	if historyPath != "" {
		d, err := recordHistory(ctx, historyPath, report)
		if err != nil {
			return err
		}
		diff = d
	}

	switch rf.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case "summary":
		output.RenderSummary(w, report)
		printDiff(w, diff)
	default:
		output.RenderSummary(w, report)
		printDiff(w, diff)
		fmt.Fprintln(w)
		output.RenderTable(w, report.Findings, output.TableOptions{
			Colored:       rf.colored,
			HidePassing:   rf.hidePassing,
			LocationLabel: label,
		})
	}

	if policy.ShouldFail(report.Provider, report.Findings, pol) {
		return &exitError{code: exitPolicyViolation, msg: "policy enforcement failed"}
	}
	return nil
}

func recordHistory(ctx context.Context, path string, report *models.AuditReport) (*history.Diff, error) {
	store, err := history.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.Record(ctx, report); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	return store.DiffPrevious(ctx, report.ReportID)
}

func printDiff(w io.Writer, d *history.Diff) {
	if d == nil || d.Base == "" {
		return
	}
	fmt.Fprintf(w, "Since %s: %d new, %d resolved\n", d.Base, len(d.New), len(d.Resolved))
}

func readScanRecord(path string) (*scanRecord, *cache.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}
	var rec scanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if rec.Provider == "" {
		return nil, nil, fmt.Errorf("snapshot %s names no provider", path)
	}
	store, err := rec.Cache.Restore()
	if err != nil {
		return nil, nil, fmt.Errorf("restore snapshot %s: %w", path, err)
	}
	return &rec, store, nil
}

// writeJSONFile serialises v as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file %q: %w", path, err)
	}
	return nil
}

// allRuleIDs returns the union of every built-in rule ID and the custom
// rules of all providers, sorted. Policies are shared across providers, so
// any known ID is accepted.
func allRuleIDs(custom []*regorule.Rule) []string {
	seen := make(map[string]bool)
	for _, p := range rulepacks.Providers() {
		reg, err := rulepacks.Registry(p)
		if err != nil {
			continue
		}
		for _, id := range reg.IDs() {
			seen[id] = true
		}
	}
	for _, r := range custom {
		seen[r.ID()] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
