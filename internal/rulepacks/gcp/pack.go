// Package gcp provides the GCP Compute Engine rule pack.
package gcp

import "github.com/pankaj-dahiya-devops/posture/internal/rules"

// New returns the GCP rule pack ordered by severity.
func New() []rules.Rule {
	return []rules.Rule{
		rules.GCPInstancePublicAccessRule{},          // HIGH
		rules.GCPInstanceDefaultServiceAccountRule{}, // MEDIUM
	}
}
