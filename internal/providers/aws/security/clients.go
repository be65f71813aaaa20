package awssecurity

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cloudwatchsvc "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ekssvc "github.com/aws/aws-sdk-go-v2/service/eks"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	guardduty "github.com/aws/aws-sdk-go-v2/service/guardduty"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3APIClient covers bucket listing and the two per-bucket reads.
type s3APIClient interface {
	ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error)
}

// ec2SecurityAPIClient embeds the paginator interface so the SDK paginator
// can drive it directly.
type ec2SecurityAPIClient interface {
	ec2svc.DescribeSecurityGroupsAPIClient
}

type iamAPIClient interface {
	iamsvc.ListUsersAPIClient
	ListMFADevices(ctx context.Context, params *iamsvc.ListMFADevicesInput, optFns ...func(*iamsvc.Options)) (*iamsvc.ListMFADevicesOutput, error)
	GetLoginProfile(ctx context.Context, params *iamsvc.GetLoginProfileInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetLoginProfileOutput, error)
	GetAccountSummary(ctx context.Context, params *iamsvc.GetAccountSummaryInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetAccountSummaryOutput, error)
}

type cloudTrailAPIClient interface {
	DescribeTrails(ctx context.Context, params *cloudtrailsvc.DescribeTrailsInput, optFns ...func(*cloudtrailsvc.Options)) (*cloudtrailsvc.DescribeTrailsOutput, error)
}

// guardDutyAPIClient lists detector IDs; GetDetector returns each status.
type guardDutyAPIClient interface {
	ListDetectors(ctx context.Context, params *guardduty.ListDetectorsInput, optFns ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, params *guardduty.GetDetectorInput, optFns ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
}

type cloudWatchAPIClient interface {
	cloudwatchsvc.DescribeAlarmsAPIClient
}

type awsConfigAPIClient interface {
	DescribeConfigurationRecorderStatus(ctx context.Context, params *configsvc.DescribeConfigurationRecorderStatusInput, optFns ...func(*configsvc.Options)) (*configsvc.DescribeConfigurationRecorderStatusOutput, error)
}

type rdsAPIClient interface {
	rdssvc.DescribeDBInstancesAPIClient
}

type eksAPIClient interface {
	ekssvc.ListClustersAPIClient
	DescribeCluster(ctx context.Context, params *ekssvc.DescribeClusterInput, optFns ...func(*ekssvc.Options)) (*ekssvc.DescribeClusterOutput, error)
}

type elbv2APIClient interface {
	elbv2svc.DescribeLoadBalancersAPIClient
}

// secClients bundles the service clients of one region.
type secClients struct {
	S3         s3APIClient
	EC2        ec2SecurityAPIClient
	IAM        iamAPIClient
	CloudTrail cloudTrailAPIClient
	GuardDuty  guardDutyAPIClient
	CloudWatch cloudWatchAPIClient
	Config     awsConfigAPIClient
	RDS        rdsAPIClient
	EKS        eksAPIClient
	ELBv2      elbv2APIClient
}

// secClientFactory creates secClients from a region-scoped AWS config.
// Tests replace it with a function returning fakes.
type secClientFactory func(cfg aws.Config) *secClients

func newDefaultSecClients(cfg aws.Config) *secClients {
	return &secClients{
		S3:         s3svc.NewFromConfig(cfg),
		EC2:        ec2svc.NewFromConfig(cfg),
		IAM:        iamsvc.NewFromConfig(cfg),
		CloudTrail: cloudtrailsvc.NewFromConfig(cfg),
		GuardDuty:  guardduty.NewFromConfig(cfg),
		CloudWatch: cloudwatchsvc.NewFromConfig(cfg),
		Config:     configsvc.NewFromConfig(cfg),
		RDS:        rdssvc.NewFromConfig(cfg),
		EKS:        ekssvc.NewFromConfig(cfg),
		ELBv2:      elbv2svc.NewFromConfig(cfg),
	}
}
