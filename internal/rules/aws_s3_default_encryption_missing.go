package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// AWSS3DefaultEncryptionMissingRule flags buckets with no default
// server-side encryption configuration.
type AWSS3DefaultEncryptionMissingRule struct{}

func (r AWSS3DefaultEncryptionMissingRule) ID() string { return "S3_DEFAULT_ENCRYPTION_MISSING" }

func (r AWSS3DefaultEncryptionMissingRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "S3 Bucket Default Encryption",
		Category:          "S3",
		Domain:            "Storage",
		Severity:          models.SeverityHigh,
		Description:       "Ensures S3 buckets encrypt new objects by default.",
		Link:              "https://docs.aws.amazon.com/AmazonS3/latest/userguide/default-bucket-encryption.html",
		RecommendedAction: "Enable S3 default encryption (SSE-S3 or SSE-KMS) so that all new objects are automatically encrypted at rest.",
		APIs:              []cache.Key{models.KeyS3Buckets, models.KeyS3BucketEncryption},
		RealtimeTriggers:  []string{"s3:CreateBucket", "s3:PutBucketEncryption", "s3:DeleteBucketEncryption"},
		Compliance: map[string]string{
			"cis1": "2.1.1 Ensure all S3 buckets employ encryption-at-rest",
		},
	}
}

func (r AWSS3DefaultEncryptionMissingRule) Evaluate(rctx *RuleContext) error {
	return forEachBucket(rctx, "encryption", models.KeyS3BucketEncryption, func(bucket string, l Lookup, resource string) {
		enc, ok := decodeValue[models.AWSBucketEncryption](rctx, l, regionGlobal, "bucket encryption")
		if !ok {
			return
		}
		if enc.Enabled {
			pass(rctx, fmt.Sprintf("Bucket %s has default encryption (%s)", bucket, enc.Algorithm), regionGlobal, resource)
			return
		}
		fail(rctx, fmt.Sprintf("S3 bucket %q does not have server-side encryption enabled by default", bucket), regionGlobal, resource)
	})
}

// forEachBucket walks s3:listBuckets and the per-bucket detail key. fn sees
// every bucket whose detail entry was written without error.
func forEachBucket(rctx *RuleContext, what string, detail cache.Key, fn func(bucket string, l Lookup, resource string)) error {
	l, ok := global(rctx, models.KeyS3Buckets, "S3 buckets", true)
	if !ok {
		return nil
	}
	if l.State == Empty {
		pass(rctx, "No S3 buckets found", regionGlobal, "")
		return nil
	}
	buckets, ok := decode[models.AWSS3Bucket](rctx, l, regionGlobal, "S3 buckets")
	if !ok {
		return nil
	}
	for _, b := range buckets {
		resource := naming.AWSARN("s3", "", "", b.Name)
		dl := rctx.Lookup(detail.At(cache.Scope(b.Name)))
		switch dl.State {
		case Absent:
			continue
		case Failed:
			rctx.AddError(fmt.Sprintf("Unable to query %s for bucket %s: %s", what, b.Name, dl.Entry.ErrorMessage()), regionGlobal, dl.Err())
			continue
		}
		fn(b.Name, dl, resource)
	}
	return nil
}
