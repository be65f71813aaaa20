package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/posture/internal/history"
	"github.com/pankaj-dahiya-devops/posture/internal/output"
)

func newHistoryCmd(a *app) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded scans",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "History database (default: history.path from config)")

	open := func(cmd *cobra.Command) (*history.Store, error) {
		path := dbPath
		if path == "" {
			path = a.cfg.History.Path
		}
		if path == "" {
			return nil, errors.New("no history database; pass --db or set history.path")
		}
		return history.Open(cmd.Context(), path)
	}

	var (
		provider string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			scans, err := store.ListScans(cmd.Context(), provider, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(scans) == 0 {
				fmt.Fprintln(w, "No scans recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROVIDER\tACCOUNT\tGENERATED\tFAIL\tWARN\tUNKNOWN")
			for _, s := range scans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					s.ID, s.Provider, s.Account, s.GeneratedAt.UTC().Format(time.RFC3339),
					s.Summary.Fail, s.Summary.Warn, s.Summary.Unknown)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&provider, "provider", "", "Only list scans of this provider")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of scans to list")

	var format string
	diff := &cobra.Command{
		Use:   "diff <scan-id>",
		Short: "Show failing findings added or resolved since the previous scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			d, err := store.DiffPrevious(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			base := d.Base
			if base == "" {
				base = "(none)"
			}
			fmt.Fprintf(w, "Base: %s\nHead: %s\n", base, d.Head)
			fmt.Fprintf(w, "\nNew (%d):\n", len(d.New))
			output.RenderTable(w, d.New, output.TableOptions{})
			fmt.Fprintf(w, "\nResolved (%d):\n", len(d.Resolved))
			output.RenderTable(w, d.Resolved, output.TableOptions{})
			return nil
		},
	}
	diff.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	cmd.AddCommand(list, diff)
	return cmd
}
