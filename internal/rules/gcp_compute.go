package rules

import (
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// forEachZoneInstances walks compute:list for every zone of every scanned
// region. Zones that were never collected are skipped; failed zones become
// UNKNOWN findings; zones with no instances are aggregated into one PASS per
// region. fn receives the decoded instances of populated zones.
func forEachZoneInstances(rctx *RuleContext, fn func(region, zone string, instances []models.GCPInstance)) {
	for _, region := range rctx.Settings.Regions {
		var noInstances []string
		for _, zone := range rctx.Settings.Zones[region] {
			l := rctx.Lookup(models.KeyGCPInstances.At(cache.Scope(zone)))
			switch l.State {
			case Absent:
				continue
			case Failed:
				rctx.AddError("Unable to query instances: "+l.Entry.ErrorMessage(), region, l.Err())
				continue
			case Empty:
				noInstances = append(noInstances, zone)
				continue
			}
			instances, ok := decode[models.GCPInstance](rctx, l, region, "instances")
			if !ok {
				continue
			}
			fn(region, zone, instances)
		}
		if len(noInstances) > 0 {
			pass(rctx, "No instances found in following zones: "+strings.Join(noInstances, ", "), region, "")
		}
	}
}

// ---------------------------------------------------------------------------
// COMPUTE_INSTANCE_DEFAULT_SERVICE_ACCOUNT
// ---------------------------------------------------------------------------

// GCPInstanceDefaultServiceAccountRule flags compute instances that run as the
// project's default Compute Engine service account, which holds the Editor
// role on the project.
type GCPInstanceDefaultServiceAccountRule struct{}

func (r GCPInstanceDefaultServiceAccountRule) ID() string {
	return "COMPUTE_INSTANCE_DEFAULT_SERVICE_ACCOUNT"
}

func (r GCPInstanceDefaultServiceAccountRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Instance Default Service Account",
		Category:          "Compute",
		Domain:            "Compute",
		Severity:          models.SeverityMedium,
		Description:       "Ensures that compute instances are not configured to use the default service account.",
		MoreInfo:          "Default service account has the editor role permissions. Due to security reasons it should not be used for any instance.",
		Link:              "https://cloud.google.com/compute/docs/access/service-accounts",
		RecommendedAction: "Make sure that compute instances are not using default service account",
		APIs:              []cache.Key{models.KeyGCPInstances, models.KeyGCPProject},
		RealtimeTriggers: []string{
			"compute.projects.insert", "compute.projects.delete",
			"compute.instances.insert", "compute.instances.delete",
			"compute.instances.setServiceAccount",
		},
		Compliance: map[string]string{
			"cis3": "4.1 Ensure That Instances Are Not Configured To Use the Default Service Account",
		},
	}
}

// Evaluate emits one PASS/FAIL per instance. Without project data the rule
// cannot know the default account: a missing project entry yields nothing,
// a failed one a single UNKNOWN.
func (r GCPInstanceDefaultServiceAccountRule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyGCPProject, "projects", false)
	if !ok {
		return nil
	}
	if l.State == Empty {
		pass(rctx, "No projects found", regionGlobal, "")
		return nil
	}
	project, ok := decodeValue[models.GCPProject](rctx, l, regionGlobal, "projects")
	if !ok || project.DefaultServiceAccount == "" {
		return nil
	}

	forEachZoneInstances(rctx, func(region, zone string, instances []models.GCPInstance) {
		for _, inst := range instances {
			resource := naming.GCPResource("instances", inst.Name, project.ProjectID, naming.GCPZone, zone)
			if usesServiceAccount(inst, project.DefaultServiceAccount) {
				fail(rctx, "Default service account is used for instance", region, resource)
			} else {
				pass(rctx, "Default service account is not used for instance", region, resource)
			}
		}
	})
	return nil
}

func usesServiceAccount(inst models.GCPInstance, email string) bool {
	for _, sa := range inst.ServiceAccounts {
		if sa.Email == email {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// COMPUTE_INSTANCE_PUBLIC_ACCESS
// ---------------------------------------------------------------------------

// GCPInstancePublicAccessRule flags compute instances with an external IP
// access configuration on any network interface. GKE node instances
// (name prefix "gke-") are managed by the cluster and skipped.
type GCPInstancePublicAccessRule struct{}

func (r GCPInstancePublicAccessRule) ID() string { return "COMPUTE_INSTANCE_PUBLIC_ACCESS" }

func (r GCPInstancePublicAccessRule) Metadata() Metadata {
	return Metadata{
		ID:          r.ID(),
		Title:       "Instance Public Access Disabled",
		Category:    "Compute",
		Domain:      "Compute",
		Severity:    models.SeverityHigh,
		Description: "Ensures that compute instances are not configured to allow public access.",
		MoreInfo: "Compute Instances should always be configured behind load balancers instead of having public IP addresses " +
			"in order to minimize the instance's exposure to the internet.",
		Link:              "https://cloud.google.com/compute/docs/ip-addresses/reserve-static-external-ip-address",
		RecommendedAction: "Modify compute instances and set External IP to None for network interface",
		APIs:              []cache.Key{models.KeyGCPInstances, models.KeyGCPProject},
		RealtimeTriggers: []string{
			"compute.instances.insert", "compute.instances.delete",
			"compute.instances.updateNetworkInterface",
		},
		Compliance: map[string]string{
			"cis3": "4.9 Ensure That Compute Instances Do Not Have Public IP Addresses",
		},
	}
}

// Evaluate needs the project ID for resource names, so any missing project
// data is a single UNKNOWN.
func (r GCPInstancePublicAccessRule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyGCPProject, "projects", true)
	if !ok {
		return nil
	}
	if l.State == Empty {
		rctx.AddError("Unable to query for projects: no projects found", regionGlobal, nil)
		return nil
	}
	project, ok := decodeValue[models.GCPProject](rctx, l, regionGlobal, "projects")
	if !ok {
		return nil
	}

	forEachZoneInstances(rctx, func(region, zone string, instances []models.GCPInstance) {
		for _, inst := range instances {
			if strings.HasPrefix(inst.Name, "gke-") {
				continue
			}
			resource := naming.GCPResource("instances", inst.Name, project.ProjectID, naming.GCPZone, zone)
			if hasExternalAccess(inst) {
				fail(rctx, "Public access is enabled for the instance", region, resource)
			} else {
				pass(rctx, "Public access is disabled for the instance", region, resource)
			}
		}
	})
	return nil
}

func hasExternalAccess(inst models.GCPInstance) bool {
	for _, nic := range inst.NetworkInterfaces {
		if len(nic.AccessConfigs) > 0 {
			return true
		}
	}
	return false
}
