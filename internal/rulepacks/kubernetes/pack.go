// Package kubernetes provides the cloud-agnostic Kubernetes rule pack.
package kubernetes

import "github.com/pankaj-dahiya-devops/posture/internal/rules"

// New returns the Kubernetes rule pack ordered by severity.
func New() []rules.Rule {
	return []rules.Rule{
		rules.K8SPrivilegedContainerRule{},       // CRITICAL
		rules.K8SServicePublicLoadBalancerRule{}, // HIGH
		rules.K8SNamespaceWithoutLimitsRule{},    // MEDIUM
	}
}
