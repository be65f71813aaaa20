package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/posture/internal/regorule"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

// ruleEntry is one row of rules list.
type ruleEntry struct {
	Provider string `json:"provider"`
	rules.Metadata
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the registered rules",
	}

	var (
		provider string
		format   string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List rules with their severity, cache keys and compliance mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := rulepacks.Providers()
			if provider != "" {
				providers = []string{provider}
			}

			var loaded []*regorule.Rule
			if dir := a.cfg.Rego.Dir; dir != "" {
				var err error
				if loaded, err = regorule.LoadDir(cmd.Context(), dir); err != nil {
					return err
				}
			}

			var entries []ruleEntry
			for _, p := range providers {
				reg, err := rulepacks.Registry(p, regorule.ForProvider(loaded, p)...)
				if err != nil {
					return err
				}
				for _, r := range reg.All() {
					entries = append(entries, ruleEntry{Provider: p, Metadata: r.Metadata()})
				}
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			renderRuleTable(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	list.Flags().StringVar(&provider, "provider", "", "Only list rules of this provider")
	list.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	cmd.AddCommand(list)
	return cmd
}

func renderRuleTable(w io.Writer, entries []ruleEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No rules.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tID\tSEVERITY\tAPIS\tTRIGGERS\tCOMPLIANCE")
	for _, e := range entries {
		apis := make([]string, len(e.APIs))
		for i, k := range e.APIs {
			apis[i] = k.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Provider, e.ID, e.Severity,
			strings.Join(apis, ","),
			dashIfEmpty(strings.Join(e.RealtimeTriggers, ",")),
			dashIfEmpty(complianceList(e.Compliance)),
		)
	}
	tw.Flush() //nolint:errcheck
}

func complianceList(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for fw, ctl := range m {
		parts = append(parts, fw+" "+ctl)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
