package models

import "github.com/pankaj-dahiya-devops/posture/internal/cache"

// Cache keys shared by collectors and rules.
var (
	// AWS
	KeyIAMAccountSummary  = cache.NewKey("iam", "getAccountSummary")
	KeyIAMUsers           = cache.NewKey("iam", "listUsers")
	KeyIAMMFADevices      = cache.NewKey("iam", "listMFADevices")
	KeyIAMLoginProfile    = cache.NewKey("iam", "getLoginProfile")
	KeyS3Buckets          = cache.NewKey("s3", "listBuckets")
	KeyS3BucketEncryption = cache.NewKey("s3", "getBucketEncryption")
	KeyS3BucketPolicy     = cache.NewKey("s3", "getBucketPolicyStatus")
	KeyEC2SecurityGroups  = cache.NewKey("ec2", "describeSecurityGroups")
	KeyGuardDutyDetectors = cache.NewKey("guardduty", "listDetectors")
	KeyCloudWatchAlarms   = cache.NewKey("cloudwatch", "describeAlarms")
	KeyConfigRecorders    = cache.NewKey("configservice", "describeConfigurationRecorderStatus")
	KeyCloudTrailTrails   = cache.NewKey("cloudtrail", "describeTrails")
	KeyRDSInstances       = cache.NewKey("rds", "describeDBInstances")
	KeyEKSClusters        = cache.NewKey("eks", "listClusters")
	KeyEKSCluster         = cache.NewKey("eks", "describeCluster")
	KeyELBv2LoadBalancers = cache.NewKey("elasticloadbalancingv2", "describeLoadBalancers")

	// Azure
	KeyAzurePricings = cache.NewKey("pricings", "list")

	// GCP
	KeyGCPProject   = cache.NewKey("projects", "get")
	KeyGCPInstances = cache.NewKey("compute", "list")

	// GitHub
	KeyGitHubRepos      = cache.NewKey("apps", "listRepos")
	KeyGitHubDeployKeys = cache.NewKey("repos", "listDeployKeys")

	// Kubernetes
	KeyK8sNamespaces  = cache.NewKey("core", "listNamespaces")
	KeyK8sLimitRanges = cache.NewKey("core", "listLimitRanges")
	KeyK8sPods        = cache.NewKey("core", "listPods")
	KeyK8sServices    = cache.NewKey("core", "listServices")
)
