package models

// Records written to the cache by the AWS collectors. Each type is the Data of
// one cache key; the key is noted on the type.

// AWSAccountSummary is iam:getAccountSummary[global].
// RootAccessKeysPresent and RootMFAEnabled come from the AccountAccessKeysPresent
// and AccountMFAEnabled entries of the summary map.
type AWSAccountSummary struct {
	RootAccessKeysPresent bool `json:"root_access_keys_present"`
	RootMFAEnabled        bool `json:"root_mfa_enabled"`
}

// AWSIAMUser is one element of iam:listUsers[global].
type AWSIAMUser struct {
	UserName string `json:"user_name"`
	ARN      string `json:"arn"`
}

// AWSMFADevice is one element of iam:listMFADevices[<user>].
type AWSMFADevice struct {
	SerialNumber string `json:"serial_number"`
}

// AWSLoginProfile is iam:getLoginProfile[<user>]. Exists is false when the
// user has no console password; API-only users should not be flagged for
// missing MFA.
type AWSLoginProfile struct {
	UserName string `json:"user_name"`
	Exists   bool   `json:"exists"`
}

// AWSS3Bucket is one element of s3:listBuckets[global].
// Region is the bucket's home region when ListBuckets reports it.
type AWSS3Bucket struct {
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}

// AWSBucketEncryption is s3:getBucketEncryption[<bucket>]. A bucket without a
// server-side encryption configuration has Enabled == false.
type AWSBucketEncryption struct {
	Enabled   bool   `json:"enabled"`
	Algorithm string `json:"algorithm,omitempty"`
}

// AWSBucketPolicyStatus is s3:getBucketPolicyStatus[<bucket>]. Buckets
// without a bucket policy are reported as not public.
type AWSBucketPolicyStatus struct {
	IsPublic bool `json:"is_public"`
}

// AWSSecurityGroupRule is one element of ec2:describeSecurityGroups[<region>],
// flattened to one entry per inbound CIDR.
type AWSSecurityGroupRule struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name,omitempty"`
	Protocol  string `json:"protocol"`
	FromPort  int    `json:"from_port"`
	ToPort    int    `json:"to_port"`
	CIDR      string `json:"cidr"`
}

// AWSGuardDutyDetector is one element of guardduty:listDetectors[<region>].
type AWSGuardDutyDetector struct {
	DetectorID string `json:"detector_id"`
	Status     string `json:"status"`
}

// AWSCloudWatchAlarm is one element of cloudwatch:describeAlarms[<region>].
// Only metric alarms are collected.
type AWSCloudWatchAlarm struct {
	Name           string   `json:"name"`
	ARN            string   `json:"arn"`
	Namespace      string   `json:"namespace,omitempty"`
	MetricName     string   `json:"metric_name,omitempty"`
	State          string   `json:"state,omitempty"`
	ActionsEnabled bool     `json:"actions_enabled"`
	AlarmActions   []string `json:"alarm_actions,omitempty"`
}

// AWSConfigRecorder is one element of
// configservice:describeConfigurationRecorderStatus[<region>].
type AWSConfigRecorder struct {
	Name      string `json:"name"`
	Recording bool   `json:"recording"`
}

// AWSCloudTrail is one element of cloudtrail:describeTrails[global].
type AWSCloudTrail struct {
	Name               string `json:"name"`
	HomeRegion         string `json:"home_region"`
	IsMultiRegionTrail bool   `json:"is_multi_region_trail"`
}

// AWSRDSInstance is one element of rds:describeDBInstances[<region>].
type AWSRDSInstance struct {
	DBInstanceID     string `json:"db_instance_id"`
	Engine           string `json:"engine"`
	StorageEncrypted bool   `json:"storage_encrypted"`
}

// AWSEKSClusterName is one element of eks:listClusters[<region>].
type AWSEKSClusterName struct {
	Name string `json:"name"`
}

// AWSEKSCluster is eks:describeCluster[<region>/<cluster>].
type AWSEKSCluster struct {
	Name string `json:"name"`

	// EnabledLogTypes lists the control-plane log types with logging on
	// (api, audit, authenticator, controllerManager, scheduler).
	EnabledLogTypes []string `json:"enabled_log_types"`

	EndpointPublicAccess bool `json:"endpoint_public_access"`
}

// AWSLoadBalancer is one element of
// elasticloadbalancingv2:describeLoadBalancers[<region>].
type AWSLoadBalancer struct {
	Name   string `json:"name"`
	ARN    string `json:"arn"`
	Type   string `json:"type"`   // application | network | gateway
	Scheme string `json:"scheme"` // internet-facing | internal
}
