// Package naming builds canonical resource identifiers for findings.
package naming

import (
	"fmt"
	"strings"
)

// GCPLocation is the location kind segment of a GCP resource name.
type GCPLocation string

const (
	GCPZone   GCPLocation = "zones"
	GCPRegion GCPLocation = "regions"
	GCPGlobal GCPLocation = "global"
)

// GCPResource returns the relative resource name of a GCP resource, e.g.
// projects/proj-1/zones/us-central1-a/instances/vm-1. Location is ignored
// for GCPGlobal.
func GCPResource(kind, name, project string, locKind GCPLocation, location string) string {
	if locKind == GCPGlobal || location == "" {
		return fmt.Sprintf("projects/%s/global/%s/%s", project, kind, name)
	}
	return fmt.Sprintf("projects/%s/%s/%s/%s/%s", project, locKind, location, kind, name)
}

// AWSARN builds an ARN. Region and account may be empty for global services.
func AWSARN(service, region, account, resource string) string {
	return strings.Join([]string{"arn", "aws", service, region, account, resource}, ":")
}

// GitHubRepository returns the owner/name form of a repository.
func GitHubRepository(owner, repo string) string {
	return owner + "/" + repo
}

// GitHubDeployKey identifies a deploy key within a repository.
func GitHubDeployKey(owner, repo string, id int64) string {
	return fmt.Sprintf("https://github.com/%s/%s/settings/keys/%d", owner, repo, id)
}

// Kubernetes identifies a namespaced object as context/namespace/kind/name.
// Cluster-scoped objects pass an empty namespace.
func Kubernetes(context, namespace, kind, name string) string {
	parts := []string{context}
	if namespace != "" {
		parts = append(parts, namespace)
	}
	return strings.Join(append(parts, kind, name), "/")
}
