package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/pankaj-dahiya-devops/posture/internal/policy"
)

// DoctorResult is the structured output of posture doctor. It can be
// serialised to JSON via --format=json or rendered as a table (default).
type DoctorResult struct {
	Config struct {
		Valid bool `json:"valid"`
	} `json:"config"`

	AWS struct {
		Checked     bool     `json:"checked"`
		Profile     string   `json:"profile,omitempty"`
		Profiles    []string `json:"profiles,omitempty"`
		Credentials bool     `json:"credentials_ok"`
		AccountID   string   `json:"account_id,omitempty"`
		RegionsOK   bool     `json:"regions_ok"`
		Regions     int      `json:"regions,omitempty"`
		Error       string   `json:"error,omitempty"`
	} `json:"aws"`

	Kubernetes struct {
		Checked      bool     `json:"checked"`
		Contexts     []string `json:"contexts,omitempty"`
		KubeconfigOK bool     `json:"kubeconfig_ok"`
		Context      string   `json:"context,omitempty"`
		APIReachable bool     `json:"api_reachable"`
		Error        string   `json:"error,omitempty"`
	} `json:"kubernetes"`

	Policy struct {
		Path    string   `json:"path"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"policy"`

	OverallHealthy bool `json:"overall_healthy"`
}

// doctorOptions selects what runDoctor checks.
type doctorOptions struct {
	format     string
	profile    string
	context    string
	policyPath string
	providers  []string
}

func newDoctorCmd(a *app) *cobra.Command {
	opts := doctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.runDoctor(cmd.Context(), cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				return &exitError{code: exitUnhealthy}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "table", `Output format: "table" or "json"`)
	cmd.Flags().StringVar(&opts.profile, "profile", "", "AWS profile to use (default: credential chain)")
	cmd.Flags().StringVar(&opts.context, "context", "", "Kubeconfig context to probe (default: current context)")
	cmd.Flags().StringVar(&opts.policyPath, "policy", policy.DefaultPolicyFile, "Policy file to validate")
	cmd.Flags().StringSliceVar(&opts.providers, "providers", []string{"aws", "kubernetes"}, "Providers whose credentials are checked")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result. The error covers rendering
// failures only; callers inspect result.OverallHealthy.
func (a *app) runDoctor(ctx context.Context, w io.Writer, opts doctorOptions) (DoctorResult, error) {
	result := a.collectDoctorResult(ctx, opts)

	switch opts.format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}
	return result, nil
}

// collectDoctorResult runs the environment checks without rendering.
func (a *app) collectDoctorResult(ctx context.Context, opts doctorOptions) DoctorResult {
	var result DoctorResult
	healthy := true

	// Config was loaded and validated by the root command.
	result.Config.Valid = a.cfg != nil

	if slices.Contains(opts.providers, "aws") {
		result.AWS.Checked = true
		result.AWS.Profile = opts.profile
		if a.awsProfiles != nil {
			if names, err := a.awsProfiles(); err == nil {
				result.AWS.Profiles = names
			}
		}
		profileCfg, err := a.awsProvider.LoadProfile(ctx, opts.profile)
		if err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.Credentials = true
			result.AWS.AccountID = profileCfg.AccountID
			regionList, err := a.awsProvider.GetActiveRegions(ctx, profileCfg)
			if err != nil {
				result.AWS.Error = err.Error()
			} else {
				result.AWS.RegionsOK = true
				result.AWS.Regions = len(regionList)
			}
		}
		healthy = healthy && result.AWS.Credentials && result.AWS.RegionsOK
	}

	if slices.Contains(opts.providers, "kubernetes") {
		result.Kubernetes.Checked = true
		if a.kubeContexts != nil {
			if names, _, err := a.kubeContexts(); err == nil {
				result.Kubernetes.Contexts = names
			}
		}
		clientset, info, err := a.kubeProvider.ClientsetForContext(opts.context)
		if err != nil {
			result.Kubernetes.Error = err.Error()
		} else {
			result.Kubernetes.KubeconfigOK = true
			result.Kubernetes.Context = info.ContextName
			_, err = clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
			if err != nil {
				result.Kubernetes.Error = err.Error()
			} else {
				result.Kubernetes.APIReachable = true
			}
		}
		healthy = healthy && result.Kubernetes.KubeconfigOK && result.Kubernetes.APIReachable
	}

	// Policy: stat, load, validate. The file is optional.
	result.Policy.Path = opts.policyPath
	_, statErr := os.Stat(opts.policyPath)
	if statErr == nil {
		result.Policy.Present = true
		cfg, loadErr := policy.LoadPolicy(opts.policyPath)
		if loadErr != nil {
			result.Policy.Errors = []string{loadErr.Error()}
		} else if custom, regoErr := a.regoRules(ctx); regoErr != nil {
			result.Policy.Errors = []string{regoErr.Error()}
		} else {
			errs := policy.Validate(cfg, allRuleIDs(custom))
			if len(errs) == 0 {
				result.Policy.Valid = true
			}
			for _, e := range errs {
				result.Policy.Errors = append(result.Policy.Errors, e.Error())
			}
		}
	} else if !os.IsNotExist(statErr) {
		result.Policy.Present = true
		result.Policy.Errors = []string{statErr.Error()}
	}

	result.OverallHealthy = healthy &&
		result.Config.Valid &&
		(!result.Policy.Present || result.Policy.Valid)
	return result
}

// renderDoctorTable writes the human-readable diagnostic output to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Checked {
		if result.AWS.Profile != "" {
			fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
		} else {
			fmt.Fprintln(w, "\nAWS:")
		}
		if len(result.AWS.Profiles) > 0 {
			doctorPrint(w, "Profiles", "OK", strings.Join(result.AWS.Profiles, ", "))
		}
		if !result.AWS.Credentials {
			doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
			doctorPrint(w, "STS Identity", "FAIL", "skipped")
			doctorPrint(w, "Regions API", "FAIL", "skipped")
		} else {
			doctorPrint(w, "Credentials", "OK", "")
			doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
			if result.AWS.RegionsOK {
				doctorPrint(w, "Regions API", "OK", fmt.Sprintf("%d regions", result.AWS.Regions))
			} else {
				doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
			}
		}
	}

	if result.Kubernetes.Checked {
		fmt.Fprintln(w, "\nKubernetes:")
		if !result.Kubernetes.KubeconfigOK {
			doctorPrint(w, "Kubeconfig", "FAIL", result.Kubernetes.Error)
			doctorPrint(w, "Current Context", "FAIL", "skipped")
			doctorPrint(w, "API Reachable", "FAIL", "skipped")
		} else {
			doctorPrint(w, "Kubeconfig", "OK", fmt.Sprintf("%d contexts", len(result.Kubernetes.Contexts)))
			doctorPrint(w, "Current Context", "OK", result.Kubernetes.Context)
			if result.Kubernetes.APIReachable {
				doctorPrint(w, "API Reachable", "OK", "")
			} else {
				doctorPrint(w, "API Reachable", "FAIL", result.Kubernetes.Error)
			}
		}
	}

	fmt.Fprintln(w, "\nPolicy:")
	label := result.Policy.Path + " present"
	if !result.Policy.Present {
		doctorPrint(w, label, "Not found (optional)", "")
	} else {
		doctorPrint(w, label, "YES", "")
		if result.Policy.Valid {
			doctorPrint(w, "Policy valid", "OK", "")
		} else {
			for _, e := range result.Policy.Errors {
				doctorPrint(w, "Policy valid", "FAIL", e)
			}
		}
	}
}

// doctorPrint writes a single diagnostic check line to w. A non-empty detail
// is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
