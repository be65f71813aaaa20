// Package aws provides the AWS security rule pack.
//
// Convention: every rule pack lives in internal/rulepacks/<provider>/pack.go
// and exposes a single New() func returning []rules.Rule.
package aws

import "github.com/pankaj-dahiya-devops/posture/internal/rules"

// New returns the AWS rule pack ordered by severity.
func New() []rules.Rule {
	return []rules.Rule{
		rules.AWSRootAccessKeyExistsRule{},        // CRITICAL
		rules.AWSRootAccountMFADisabledRule{},     // CRITICAL
		rules.AWSRDSUnencryptedRule{},             // CRITICAL
		rules.AWSCloudTrailNotMultiRegionRule{},   // HIGH
		rules.AWSS3PublicBucketRule{},             // HIGH
		rules.AWSS3DefaultEncryptionMissingRule{}, // HIGH
		rules.AWSSecurityGroupOpenSSHRule{},       // HIGH
		rules.AWSGuardDutyDisabledRule{},          // HIGH
		rules.AWSConfigDisabledRule{},             // HIGH
		rules.AWSEKSControlPlaneLoggingRule{},     // HIGH
		rules.AWSIAMUserWithoutMFARule{},          // MEDIUM
		rules.AWSCloudWatchAlarmActionsRule{},     // MEDIUM
		rules.AWSLoadBalancerInternetFacingRule{}, // LOW
	}
}
