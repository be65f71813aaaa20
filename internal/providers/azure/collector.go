// Package azure provides the Azure collectors, backed by the Microsoft
// Defender for Cloud management API.
package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/security/armsecurity"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// DefaultLocations is the location list of a scan that names none. Defender
// plans are set per subscription, so one pseudo-location covers them.
var DefaultLocations = []string{"global"}

// pricingsAPIClient is the part of armsecurity.PricingsClient the collectors
// use. Tests replace it with a fake.
type pricingsAPIClient interface {
	List(ctx context.Context, scopeID string, options *armsecurity.PricingsClientListOptions) (armsecurity.PricingsClientListResponse, error)
}

// Collectors builds the Azure collector set for one subscription.
type Collectors struct {
	subscription string
	pricings     pricingsAPIClient
}

// NewCollectors creates the management clients with cred. A nil cred falls
// back to the default Azure credential chain (environment, workload
// identity, managed identity, Azure CLI).
func NewCollectors(subscription string, cred azcore.TokenCredential, opts *arm.ClientOptions) (*Collectors, error) {
	if cred == nil {
		def, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("load azure credentials: %w", err)
		}
		cred = def
	}
	client, err := armsecurity.NewPricingsClient(cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create pricings client: %w", err)
	}
	return newCollectorsWithClient(subscription, client), nil
}

func newCollectorsWithClient(subscription string, pricings pricingsAPIClient) *Collectors {
	return &Collectors{subscription: subscription, pricings: pricings}
}

// All returns every Azure collector.
func (c *Collectors) All() []collect.Collector {
	return []collect.Collector{
		collect.Regional(models.KeyAzurePricings, c.listPricings),
	}
}

// listPricings reads the subscription's Defender plans for one location.
func (c *Collectors) listPricings(ctx context.Context, t collect.Target) (any, error) {
	resp, err := c.pricings.List(ctx, "subscriptions/"+c.subscription, nil)
	if err != nil {
		return nil, fmt.Errorf("list pricings of %s in %s: %w", c.subscription, t.Region, err)
	}
	out := make([]models.AzurePricing, 0, len(resp.Value))
	for _, p := range resp.Value {
		if p == nil {
			continue
		}
		out = append(out, convertPricing(p))
	}
	return out, nil
}

func convertPricing(p *armsecurity.Pricing) models.AzurePricing {
	out := models.AzurePricing{ID: deref(p.ID), Name: deref(p.Name)}
	if props := p.Properties; props != nil {
		if props.PricingTier != nil {
			out.Tier = string(*props.PricingTier)
		}
		out.SubPlan = deref(props.SubPlan)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
