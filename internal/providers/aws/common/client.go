package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// GlobalRegion is where global services (IAM, S3 listing, CloudTrail
// DescribeTrails) are queried.
const GlobalRegion = "us-east-1"

// ProfileConfig is a resolved AWS profile: the SDK configuration plus the
// account it authenticates as.
type ProfileConfig struct {
	// ProfileName is the name from ~/.aws/credentials or "default".
	ProfileName string

	// AccountID is resolved through STS GetCallerIdentity.
	AccountID string

	// Region is the profile's home region, GlobalRegion when unset.
	Region string

	Config aws.Config

	// Clients are scoped to Region and only used for discovery.
	Clients *ClientSet
}

// AWSClientProvider loads AWS configurations and resolves the regions a scan
// should cover.
type AWSClientProvider interface {
	// LoadProfile returns a ProfileConfig for the named profile.
	// Pass an empty string to load the default profile.
	LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error)

	// GetActiveRegions returns the regions enabled for the profile's account.
	GetActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error)

	// ConfigForRegion clones cfg with the target region set.
	ConfigForRegion(cfg *ProfileConfig, region string) aws.Config
}
