package main

import (
	"context"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/aws/aws-sdk-go-v2/aws"
	"google.golang.org/api/option"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	awssecurity "github.com/pankaj-dahiya-devops/posture/internal/providers/aws/security"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/azure"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/gcp"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/github"
	kube "github.com/pankaj-dahiya-devops/posture/internal/providers/kubernetes"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks"
)

// staticCredential satisfies azcore.TokenCredential without a network call.
type staticCredential struct{}

func (staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "test"}, nil
}

// Every cache key a built-in rule reads must be written by a collector of
// the same provider.
func TestRulePacks_APIsHaveCollectors(t *testing.T) {
	gcpCollectors, err := gcp.NewCollectors(context.Background(), "proj", option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("gcp collectors: %v", err)
	}
	azureCollectors, err := azure.NewCollectors("sub-1", staticCredential{}, nil)
	if err != nil {
		t.Fatalf("azure collectors: %v", err)
	}
	byProvider := map[string][]collect.Collector{
		"aws":        awssecurity.NewCollectors(aws.Config{Region: "us-east-1"}).All(),
		"azure":      azureCollectors.All(),
		"gcp":        gcpCollectors.All(),
		"github":     github.NewCollectors(nil, "", "").All(),
		"kubernetes": kube.NewCollectors(goodMockKube()).All(),
	}

	for _, provider := range rulepacks.Providers() {
		written := make(map[cache.Key]bool)
		for _, c := range byProvider[provider] {
			written[c.Descriptor().Key] = true
		}
		reg, err := rulepacks.Registry(provider)
		if err != nil {
			t.Fatalf("%s: %v", provider, err)
		}
		for _, r := range reg.All() {
			for _, k := range r.Metadata().APIs {
				if !written[k] {
					t.Errorf("%s rule %s reads %s; no collector writes it", provider, r.ID(), k)
				}
			}
		}
	}
}
