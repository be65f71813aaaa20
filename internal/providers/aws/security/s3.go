package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

const (
	codeNoEncryptionConfig = "ServerSideEncryptionConfigurationNotFoundError"
	codeNoBucketPolicy     = "NoSuchBucketPolicy"
)

func (c *Collectors) listBuckets(ctx context.Context, _ collect.Target) (any, error) {
	out, err := c.clientsFor("").S3.ListBuckets(ctx, &s3svc.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list S3 buckets: %w", err)
	}
	buckets := make([]models.AWSS3Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, models.AWSS3Bucket{
			Name:   aws.ToString(b.Name),
			Region: aws.ToString(b.BucketRegion),
		})
	}
	return buckets, nil
}

// bucketEncryption reads the default encryption configuration. A bucket
// without one is recorded as disabled rather than failed.
func (c *Collectors) bucketEncryption(ctx context.Context, _ collect.Target, b models.AWSS3Bucket) (any, error) {
	out, err := c.clientsFor(b.Region).S3.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{
		Bucket: aws.String(b.Name),
	})
	if err != nil {
		if apiErrorCode(err) == codeNoEncryptionConfig {
			return models.AWSBucketEncryption{Enabled: false}, nil
		}
		return nil, fmt.Errorf("get encryption of bucket %s: %w", b.Name, err)
	}

	enc := models.AWSBucketEncryption{}
	if out.ServerSideEncryptionConfiguration == nil {
		return enc, nil
	}
	for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
		if rule.ApplyServerSideEncryptionByDefault == nil {
			continue
		}
		enc.Enabled = true
		enc.Algorithm = string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm)
		break
	}
	return enc, nil
}

// bucketPolicyStatus reads whether the bucket policy makes it public.
// Buckets without a policy are not public.
func (c *Collectors) bucketPolicyStatus(ctx context.Context, _ collect.Target, b models.AWSS3Bucket) (any, error) {
	out, err := c.clientsFor(b.Region).S3.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{
		Bucket: aws.String(b.Name),
	})
	if err != nil {
		if apiErrorCode(err) == codeNoBucketPolicy {
			return models.AWSBucketPolicyStatus{IsPublic: false}, nil
		}
		return nil, fmt.Errorf("get policy status of bucket %s: %w", b.Name, err)
	}
	if out.PolicyStatus == nil {
		return models.AWSBucketPolicyStatus{}, nil
	}
	return models.AWSBucketPolicyStatus{IsPublic: aws.ToBool(out.PolicyStatus.IsPublic)}, nil
}
