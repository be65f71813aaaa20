// Package github provides the GitHub rule pack.
package github

import "github.com/pankaj-dahiya-devops/posture/internal/rules"

// New returns the GitHub rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.GitHubDeployKeyWriteAccessRule{},
	}
}
