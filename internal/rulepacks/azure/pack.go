// Package azure provides the Azure Defender for Cloud rule pack.
package azure

import "github.com/pankaj-dahiya-devops/posture/internal/rules"

// New returns the Azure rule pack ordered by severity.
func New() []rules.Rule {
	return []rules.Rule{
		rules.AzureDefenderForARMRule{}, // MEDIUM
	}
}
