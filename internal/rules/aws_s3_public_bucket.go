package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// AWSS3PublicBucketRule flags buckets whose bucket policy grants public
// access according to GetBucketPolicyStatus.
type AWSS3PublicBucketRule struct{}

func (r AWSS3PublicBucketRule) ID() string { return "S3_PUBLIC_BUCKET" }

func (r AWSS3PublicBucketRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "S3 Bucket Publicly Accessible",
		Category:          "S3",
		Domain:            "Storage",
		Severity:          models.SeverityHigh,
		Description:       "Ensures S3 bucket policies do not grant public access.",
		Link:              "https://docs.aws.amazon.com/AmazonS3/latest/userguide/access-control-block-public-access.html",
		RecommendedAction: "Enable all four S3 Block Public Access settings at the bucket or account level.",
		APIs:              []cache.Key{models.KeyS3Buckets, models.KeyS3BucketPolicy},
		RealtimeTriggers:  []string{"s3:PutBucketPolicy", "s3:DeleteBucketPolicy", "s3:PutPublicAccessBlock"},
		Compliance: map[string]string{
			"cis1": "2.1.5 Ensure that S3 Buckets are configured with Block public access",
		},
	}
}

func (r AWSS3PublicBucketRule) Evaluate(rctx *RuleContext) error {
	return forEachBucket(rctx, "policy status", models.KeyS3BucketPolicy, func(bucket string, l Lookup, resource string) {
		status, ok := decodeValue[models.AWSBucketPolicyStatus](rctx, l, regionGlobal, "bucket policy status")
		if !ok {
			return
		}
		if status.IsPublic {
			fail(rctx, fmt.Sprintf("Bucket %s policy allows public access", bucket), regionGlobal, resource)
			return
		}
		pass(rctx, fmt.Sprintf("Bucket %s policy is not public", bucket), regionGlobal, resource)
	})
}
