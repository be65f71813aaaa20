package awssecurity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cloudtrailtypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	cloudwatchsvc "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"
	configtypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	ekssvc "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	guardduty "github.com/aws/aws-sdk-go-v2/service/guardduty"
	guarddutytypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// fakeAWS answers every narrow client interface for one region.
type fakeAWS struct {
	region string
}

// IAM

func (f *fakeAWS) ListUsers(context.Context, *iamsvc.ListUsersInput, ...func(*iamsvc.Options)) (*iamsvc.ListUsersOutput, error) {
	return &iamsvc.ListUsersOutput{Users: []iamtypes.User{
		{UserName: aws.String("alice"), Arn: aws.String("arn:aws:iam::123:user/alice")},
		{UserName: aws.String("bob"), Arn: aws.String("arn:aws:iam::123:user/bob")},
	}}, nil
}

func (f *fakeAWS) ListMFADevices(_ context.Context, in *iamsvc.ListMFADevicesInput, _ ...func(*iamsvc.Options)) (*iamsvc.ListMFADevicesOutput, error) {
	if aws.ToString(in.UserName) == "alice" {
		return &iamsvc.ListMFADevicesOutput{MFADevices: []iamtypes.MFADevice{{SerialNumber: aws.String("arn:mfa/alice")}}}, nil
	}
	return &iamsvc.ListMFADevicesOutput{}, nil
}

func (f *fakeAWS) GetLoginProfile(_ context.Context, in *iamsvc.GetLoginProfileInput, _ ...func(*iamsvc.Options)) (*iamsvc.GetLoginProfileOutput, error) {
	if aws.ToString(in.UserName) == "bob" {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("login profile for bob cannot be found")}
	}
	return &iamsvc.GetLoginProfileOutput{}, nil
}

func (f *fakeAWS) GetAccountSummary(context.Context, *iamsvc.GetAccountSummaryInput, ...func(*iamsvc.Options)) (*iamsvc.GetAccountSummaryOutput, error) {
	return &iamsvc.GetAccountSummaryOutput{SummaryMap: map[string]int32{
		"AccountAccessKeysPresent": 1,
		"AccountMFAEnabled":        0,
	}}, nil
}

// S3

func (f *fakeAWS) ListBuckets(context.Context, *s3svc.ListBucketsInput, ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error) {
	return &s3svc.ListBucketsOutput{Buckets: []s3types.Bucket{
		{Name: aws.String("data"), BucketRegion: aws.String("eu-west-1")},
		{Name: aws.String("logs")},
		{Name: aws.String("locked")},
	}}, nil
}

func (f *fakeAWS) GetBucketPolicyStatus(_ context.Context, in *s3svc.GetBucketPolicyStatusInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error) {
	switch aws.ToString(in.Bucket) {
	case "data":
		return &s3svc.GetBucketPolicyStatusOutput{PolicyStatus: &s3types.PolicyStatus{IsPublic: aws.Bool(true)}}, nil
	case "locked":
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	}
	return nil, &smithy.GenericAPIError{Code: codeNoBucketPolicy, Message: "The bucket policy does not exist"}
}

func (f *fakeAWS) GetBucketEncryption(_ context.Context, in *s3svc.GetBucketEncryptionInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error) {
	if aws.ToString(in.Bucket) == "data" {
		if f.region != "eu-west-1" {
			return nil, errors.New("PermanentRedirect")
		}
		return &s3svc.GetBucketEncryptionOutput{ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{SSEAlgorithm: s3types.ServerSideEncryptionAes256},
			}},
		}}, nil
	}
	return nil, &smithy.GenericAPIError{Code: codeNoEncryptionConfig, Message: "The server side encryption configuration was not found"}
}

// EC2

func (f *fakeAWS) DescribeSecurityGroups(context.Context, *ec2svc.DescribeSecurityGroupsInput, ...func(*ec2svc.Options)) (*ec2svc.DescribeSecurityGroupsOutput, error) {
	return &ec2svc.DescribeSecurityGroupsOutput{SecurityGroups: []ec2types.SecurityGroup{{
		GroupId:   aws.String("sg-" + f.region),
		GroupName: aws.String("web"),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
				Ipv6Ranges: []ec2types.Ipv6Range{{CidrIpv6: aws.String("::/0")}},
			},
			{
				IpProtocol: aws.String("-1"),
				IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("10.0.0.0/8")}},
			},
		},
	}}}, nil
}

// GuardDuty

func (f *fakeAWS) ListDetectors(context.Context, *guardduty.ListDetectorsInput, ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error) {
	if f.region == "eu-west-1" {
		return nil, &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
	}
	return &guardduty.ListDetectorsOutput{DetectorIds: []string{"det-1"}}, nil
}

func (f *fakeAWS) GetDetector(context.Context, *guardduty.GetDetectorInput, ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error) {
	return &guardduty.GetDetectorOutput{Status: guarddutytypes.DetectorStatusEnabled}, nil
}

// CloudWatch

func (f *fakeAWS) DescribeAlarms(_ context.Context, in *cloudwatchsvc.DescribeAlarmsInput, _ ...func(*cloudwatchsvc.Options)) (*cloudwatchsvc.DescribeAlarmsOutput, error) {
	if f.region == "eu-west-1" {
		return &cloudwatchsvc.DescribeAlarmsOutput{}, nil
	}
	if aws.ToString(in.NextToken) == "" {
		return &cloudwatchsvc.DescribeAlarmsOutput{
			MetricAlarms: []cwtypes.MetricAlarm{{
				AlarmName:      aws.String("root-usage"),
				AlarmArn:       aws.String("arn:aws:cloudwatch:us-east-1:123:alarm:root-usage"),
				Namespace:      aws.String("CloudTrailMetrics"),
				MetricName:     aws.String("RootAccountUsage"),
				StateValue:     cwtypes.StateValueOk,
				ActionsEnabled: aws.Bool(true),
				AlarmActions:   []string{"arn:aws:sns:us-east-1:123:security"},
			}},
			NextToken: aws.String("page-2"),
		}, nil
	}
	return &cloudwatchsvc.DescribeAlarmsOutput{MetricAlarms: []cwtypes.MetricAlarm{{
		AlarmName:      aws.String("cpu-high"),
		AlarmArn:       aws.String("arn:aws:cloudwatch:us-east-1:123:alarm:cpu-high"),
		ActionsEnabled: aws.Bool(false),
	}}}, nil
}

// Config

func (f *fakeAWS) DescribeConfigurationRecorderStatus(context.Context, *configsvc.DescribeConfigurationRecorderStatusInput, ...func(*configsvc.Options)) (*configsvc.DescribeConfigurationRecorderStatusOutput, error) {
	if f.region == "eu-west-1" {
		return &configsvc.DescribeConfigurationRecorderStatusOutput{}, nil
	}
	return &configsvc.DescribeConfigurationRecorderStatusOutput{
		ConfigurationRecordersStatus: []configtypes.ConfigurationRecorderStatus{{Name: aws.String("default"), Recording: true}},
	}, nil
}

// CloudTrail

func (f *fakeAWS) DescribeTrails(context.Context, *cloudtrailsvc.DescribeTrailsInput, ...func(*cloudtrailsvc.Options)) (*cloudtrailsvc.DescribeTrailsOutput, error) {
	return &cloudtrailsvc.DescribeTrailsOutput{TrailList: []cloudtrailtypes.Trail{
		{Name: aws.String("org"), HomeRegion: aws.String("us-east-1"), IsMultiRegionTrail: aws.Bool(true)},
	}}, nil
}

// RDS

func (f *fakeAWS) DescribeDBInstances(context.Context, *rdssvc.DescribeDBInstancesInput, ...func(*rdssvc.Options)) (*rdssvc.DescribeDBInstancesOutput, error) {
	return &rdssvc.DescribeDBInstancesOutput{DBInstances: []rdstypes.DBInstance{
		{DBInstanceIdentifier: aws.String("db-" + f.region), Engine: aws.String("postgres"), StorageEncrypted: aws.Bool(f.region == "us-east-1")},
	}}, nil
}

// EKS

func (f *fakeAWS) ListClusters(context.Context, *ekssvc.ListClustersInput, ...func(*ekssvc.Options)) (*ekssvc.ListClustersOutput, error) {
	if f.region == "eu-west-1" {
		return &ekssvc.ListClustersOutput{Clusters: []string{"prod"}}, nil
	}
	return &ekssvc.ListClustersOutput{}, nil
}

func (f *fakeAWS) DescribeCluster(_ context.Context, in *ekssvc.DescribeClusterInput, _ ...func(*ekssvc.Options)) (*ekssvc.DescribeClusterOutput, error) {
	return &ekssvc.DescribeClusterOutput{Cluster: &ekstypes.Cluster{
		Name:               in.Name,
		ResourcesVpcConfig: &ekstypes.VpcConfigResponse{EndpointPublicAccess: true},
		Logging: &ekstypes.Logging{ClusterLogging: []ekstypes.LogSetup{
			{Enabled: aws.Bool(true), Types: []ekstypes.LogType{ekstypes.LogTypeApi, ekstypes.LogTypeAudit}},
			{Enabled: aws.Bool(false), Types: []ekstypes.LogType{ekstypes.LogTypeScheduler}},
		}},
	}}, nil
}

// ELBv2

func (f *fakeAWS) DescribeLoadBalancers(context.Context, *elbv2svc.DescribeLoadBalancersInput, ...func(*elbv2svc.Options)) (*elbv2svc.DescribeLoadBalancersOutput, error) {
	return &elbv2svc.DescribeLoadBalancersOutput{LoadBalancers: []elbv2types.LoadBalancer{{
		LoadBalancerName: aws.String("edge"),
		LoadBalancerArn:  aws.String("arn:aws:elasticloadbalancing:" + f.region + ":123:loadbalancer/app/edge/1"),
		Type:             elbv2types.LoadBalancerTypeEnumApplication,
		Scheme:           elbv2types.LoadBalancerSchemeEnumInternetFacing,
	}}}, nil
}

// fakeFactory records the regions clients were built for.
type fakeFactory struct {
	mu      sync.Mutex
	regions map[string]int
}

func (f *fakeFactory) build(cfg aws.Config) *secClients {
	f.mu.Lock()
	f.regions[cfg.Region]++
	f.mu.Unlock()
	fake := &fakeAWS{region: cfg.Region}
	return &secClients{
		S3: fake, EC2: fake, IAM: fake, CloudTrail: fake, GuardDuty: fake,
		CloudWatch: fake, Config: fake, RDS: fake, EKS: fake, ELBv2: fake,
	}
}

func collectAll(t *testing.T) (*cache.Store, *fakeFactory) {
	t.Helper()
	ff := &fakeFactory{regions: make(map[string]int)}
	c := NewCollectorsWithFactory(aws.Config{}, ff.build)

	store := cache.NewStore()
	err := collect.NewOrchestrator(c.All()).Run(context.Background(), store, collect.ScanConfig{
		Regions: []string{"us-east-1", "eu-west-1"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	store.Freeze()
	return store, ff
}

func mustGet(t *testing.T, store *cache.Store, p cache.Path) cache.Entry {
	t.Helper()
	e, ok := store.Get(p)
	if !ok {
		t.Fatalf("%s not written", p)
	}
	return e
}

func TestCollectors_IAM(t *testing.T) {
	store, _ := collectAll(t)

	summary, err := cache.Value[models.AWSAccountSummary](mustGet(t, store, models.KeyIAMAccountSummary.At(cache.ScopeGlobal)))
	if err != nil {
		t.Fatal(err)
	}
	if !summary.RootAccessKeysPresent || summary.RootMFAEnabled {
		t.Errorf("summary = %+v", summary)
	}

	bob, err := cache.Value[models.AWSLoginProfile](mustGet(t, store, models.KeyIAMLoginProfile.At("bob")))
	if err != nil {
		t.Fatalf("NoSuchEntity must be recorded as data, got %v", err)
	}
	if bob.Exists {
		t.Error("bob has no login profile")
	}
	alice, _ := cache.Value[models.AWSLoginProfile](mustGet(t, store, models.KeyIAMLoginProfile.At("alice")))
	if !alice.Exists {
		t.Error("alice has a login profile")
	}

	if e := mustGet(t, store, models.KeyIAMMFADevices.At("bob")); !e.Empty() {
		t.Errorf("bob MFA devices = %+v; want empty", e.Data)
	}
	devices, _ := cache.Items[models.AWSMFADevice](mustGet(t, store, models.KeyIAMMFADevices.At("alice")))
	if len(devices) != 1 || devices[0].SerialNumber != "arn:mfa/alice" {
		t.Errorf("alice MFA devices = %+v", devices)
	}
}

func TestCollectors_S3(t *testing.T) {
	store, _ := collectAll(t)

	enc, err := cache.Value[models.AWSBucketEncryption](mustGet(t, store, models.KeyS3BucketEncryption.At("data")))
	if err != nil {
		t.Fatalf("data encryption: %v (bucket region must be used)", err)
	}
	if !enc.Enabled || enc.Algorithm != "AES256" {
		t.Errorf("data encryption = %+v", enc)
	}

	logs, err := cache.Value[models.AWSBucketEncryption](mustGet(t, store, models.KeyS3BucketEncryption.At("logs")))
	if err != nil || logs.Enabled {
		t.Errorf("logs encryption = %+v, %v; want disabled without error", logs, err)
	}

	pub, _ := cache.Value[models.AWSBucketPolicyStatus](mustGet(t, store, models.KeyS3BucketPolicy.At("data")))
	if !pub.IsPublic {
		t.Error("data bucket is public")
	}
	noPolicy, err := cache.Value[models.AWSBucketPolicyStatus](mustGet(t, store, models.KeyS3BucketPolicy.At("logs")))
	if err != nil || noPolicy.IsPublic {
		t.Errorf("logs policy = %+v, %v; want not public", noPolicy, err)
	}

	denied := mustGet(t, store, models.KeyS3BucketPolicy.At("locked"))
	if !denied.Failed() {
		t.Fatal("AccessDenied must be recorded as a failure")
	}
	if qe := cache.NewQueryError(denied.Err); qe.Code != "AccessDenied" {
		t.Errorf("code = %q; want AccessDenied", qe.Code)
	}
}

func TestCollectors_Regional(t *testing.T) {
	store, ff := collectAll(t)

	for _, region := range []string{"us-east-1", "eu-west-1"} {
		rules, err := cache.Items[models.AWSSecurityGroupRule](mustGet(t, store, models.KeyEC2SecurityGroups.At(cache.Scope(region))))
		if err != nil {
			t.Fatal(err)
		}
		if len(rules) != 3 {
			t.Errorf("%s: expected 3 flattened rules, got %+v", region, rules)
		}
		if rules[0].GroupID != "sg-"+region || rules[0].FromPort != 22 || rules[1].CIDR != "::/0" {
			t.Errorf("%s: rules = %+v", region, rules)
		}
		if rules[2].Protocol != "-1" {
			t.Errorf("%s: all-traffic rule = %+v", region, rules[2])
		}
	}

	if e := mustGet(t, store, models.KeyGuardDutyDetectors.At("eu-west-1")); !e.Failed() {
		t.Error("eu-west-1 GuardDuty must fail")
	}
	dets, _ := cache.Items[models.AWSGuardDutyDetector](mustGet(t, store, models.KeyGuardDutyDetectors.At("us-east-1")))
	if len(dets) != 1 || dets[0].Status != "ENABLED" {
		t.Errorf("detectors = %+v", dets)
	}

	alarms, _ := cache.Items[models.AWSCloudWatchAlarm](mustGet(t, store, models.KeyCloudWatchAlarms.At("us-east-1")))
	if len(alarms) != 2 {
		t.Fatalf("expected 2 alarms across pages, got %+v", alarms)
	}
	if a := alarms[0]; a.Name != "root-usage" || !a.ActionsEnabled || len(a.AlarmActions) != 1 || a.State != "OK" {
		t.Errorf("alarm[0] = %+v", a)
	}
	if alarms[1].ActionsEnabled {
		t.Errorf("alarm[1] = %+v; want actions disabled", alarms[1])
	}
	if e := mustGet(t, store, models.KeyCloudWatchAlarms.At("eu-west-1")); !e.Empty() {
		t.Error("eu-west-1 has no alarms")
	}

	if e := mustGet(t, store, models.KeyConfigRecorders.At("eu-west-1")); !e.Empty() {
		t.Error("eu-west-1 has no recorders")
	}

	lbs, _ := cache.Items[models.AWSLoadBalancer](mustGet(t, store, models.KeyELBv2LoadBalancers.At("us-east-1")))
	if len(lbs) != 1 || lbs[0].Scheme != "internet-facing" || lbs[0].Type != "application" {
		t.Errorf("load balancers = %+v", lbs)
	}

	dbs, _ := cache.Items[models.AWSRDSInstance](mustGet(t, store, models.KeyRDSInstances.At("eu-west-1")))
	if len(dbs) != 1 || dbs[0].StorageEncrypted {
		t.Errorf("db instances = %+v", dbs)
	}

	for region, n := range ff.regions {
		if n != 1 {
			t.Errorf("clients for %s built %d times; want 1", region, n)
		}
	}
}

func TestCollectors_EKSDescribePerCluster(t *testing.T) {
	store, _ := collectAll(t)

	if e := mustGet(t, store, models.KeyEKSClusters.At("us-east-1")); !e.Empty() {
		t.Error("us-east-1 has no clusters")
	}
	scopes := store.Scopes(models.KeyEKSCluster)
	if len(scopes) != 1 || scopes[0] != "eu-west-1/prod" {
		t.Fatalf("describeCluster scopes = %v; want [eu-west-1/prod]", scopes)
	}
	cluster, err := cache.Value[models.AWSEKSCluster](mustGet(t, store, models.KeyEKSCluster.At("eu-west-1/prod")))
	if err != nil {
		t.Fatal(err)
	}
	if len(cluster.EnabledLogTypes) != 2 || cluster.EnabledLogTypes[0] != "api" || cluster.EnabledLogTypes[1] != "audit" {
		t.Errorf("EnabledLogTypes = %v", cluster.EnabledLogTypes)
	}
	if !cluster.EndpointPublicAccess {
		t.Error("endpoint is public")
	}
}

func TestCollectors_CloudTrail(t *testing.T) {
	store, _ := collectAll(t)
	trails, err := cache.Items[models.AWSCloudTrail](mustGet(t, store, models.KeyCloudTrailTrails.At(cache.ScopeGlobal)))
	if err != nil {
		t.Fatal(err)
	}
	if len(trails) != 1 || !trails[0].IsMultiRegionTrail {
		t.Errorf("trails = %+v", trails)
	}
}

func TestApiErrorCode(t *testing.T) {
	if got := apiErrorCode(&smithy.GenericAPIError{Code: "Throttling"}); got != "Throttling" {
		t.Errorf("code = %q", got)
	}
	if got := apiErrorCode(errors.New("plain")); got != "" {
		t.Errorf("code = %q; want empty", got)
	}
}
