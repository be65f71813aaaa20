package rules

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// requiredLoggingTypes are the EKS control-plane log categories that must all
// be enabled. The policy may override them with the comma-separated
// "log_types" rule setting.
var requiredLoggingTypes = []string{"api", "audit", "authenticator"}

// AWSEKSControlPlaneLoggingRule fires when an EKS cluster does not have all
// required control-plane log types enabled.
type AWSEKSControlPlaneLoggingRule struct{}

func (r AWSEKSControlPlaneLoggingRule) ID() string { return "EKS_CONTROL_PLANE_LOGGING_DISABLED" }

func (r AWSEKSControlPlaneLoggingRule) Metadata() Metadata {
	return Metadata{
		ID:          r.ID(),
		Title:       "EKS Control Plane Logging Not Fully Enabled",
		Category:    "EKS",
		Domain:      "Containers",
		Severity:    models.SeverityHigh,
		Description: "Ensures EKS clusters send api, audit and authenticator logs to CloudWatch.",
		Link:        "https://docs.aws.amazon.com/eks/latest/userguide/control-plane-logs.html",
		RecommendedAction: "Enable api, audit, and authenticator log types in the EKS cluster's " +
			"logging configuration to capture all authentication and authorisation events.",
		APIs:             []cache.Key{models.KeyEKSClusters, models.KeyEKSCluster},
		RealtimeTriggers: []string{"eks:CreateCluster", "eks:UpdateClusterConfig"},
	}
}

func (r AWSEKSControlPlaneLoggingRule) Evaluate(rctx *RuleContext) error {
	required := requiredLoggingTypes
	if v := rctx.Settings.Param(r.ID(), "log_types", ""); v != "" {
		required = strings.Split(v, ",")
	}

	forEachRegion(rctx, models.KeyEKSClusters, "EKS clusters", func(region string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No EKS clusters found", region, "")
			return
		}
		names, ok := decode[models.AWSEKSClusterName](rctx, l, region, "EKS clusters")
		if !ok {
			return
		}
		for _, n := range names {
			dl := rctx.Lookup(models.KeyEKSCluster.At(cache.JoinScope(region, n.Name)))
			switch dl.State {
			case Absent:
				continue
			case Failed:
				rctx.AddError(fmt.Sprintf("Unable to describe EKS cluster %s: %s", n.Name, dl.Entry.ErrorMessage()), region, dl.Err())
				continue
			}
			cluster, ok := decodeValue[models.AWSEKSCluster](rctx, dl, region, "EKS cluster")
			if !ok {
				continue
			}
			resource := naming.AWSARN("eks", region, rctx.Settings.Account, "cluster/"+n.Name)
			if missing := missingLogTypes(cluster.EnabledLogTypes, required); len(missing) > 0 {
				fail(rctx, fmt.Sprintf("EKS cluster %q is missing control-plane log types: %s", n.Name, strings.Join(missing, ", ")), region, resource)
				continue
			}
			pass(rctx, fmt.Sprintf("EKS cluster %q has required control-plane logging enabled", n.Name), region, resource)
		}
	})
	return nil
}

func missingLogTypes(enabled, required []string) []string {
	on := make(map[string]bool, len(enabled))
	for _, t := range enabled {
		on[t] = true
	}
	var missing []string
	for _, req := range required {
		req = strings.TrimSpace(req)
		if req != "" && !on[req] {
			missing = append(missing, req)
		}
	}
	return missing
}
