package rules

import (
	"testing"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

const armPricingID = "/subscriptions/sub-1/providers/Microsoft.Security/pricings/Arm"

func azureSettings(locations ...string) Settings {
	return Settings{Account: "sub-1", Regions: locations}
}

func TestAzureDefenderForARM(t *testing.T) {
	tests := []struct {
		name     string
		entry    cache.Entry
		status   models.Status
		message  string
		resource string
	}{
		{
			name:     "standard tier",
			entry:    data([]models.AzurePricing{{ID: armPricingID, Name: "Arm", Tier: "Standard"}}),
			status:   models.StatusPass,
			message:  "Azure Defender is enabled for Resource Manager",
			resource: armPricingID,
		},
		{
			name: "free tier",
			entry: data([]models.AzurePricing{
				{ID: "/vm", Name: "VirtualMachines", Tier: "Standard"},
				{ID: armPricingID, Name: "Arm", Tier: "Free"},
			}),
			status:   models.StatusFail,
			message:  "Azure Defender is not enabled for Resource Manager",
			resource: armPricingID,
		},
		{
			name:    "plan missing",
			entry:   data([]models.AzurePricing{{ID: "/vm", Name: "VirtualMachines", Tier: "Standard"}}),
			status:  models.StatusFail,
			message: "Azure Defender is not enabled for Resource Manager",
		},
		{
			name:    "no pricings",
			entry:   data([]models.AzurePricing{}),
			status:  models.StatusPass,
			message: "No Pricing information found",
		},
		{
			name:    "query failed",
			entry:   failed("AuthorizationFailed"),
			status:  models.StatusUnknown,
			message: "Unable to query for Pricing: AuthorizationFailed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := fixture(t, map[cache.Path]cache.Entry{
				models.KeyAzurePricings.At("global"): tc.entry,
			})
			findings := run(t, AzureDefenderForARMRule{}, store, azureSettings("global"))
			if len(findings) != 1 {
				t.Fatalf("expected 1 finding, got %+v", findings)
			}
			f := findings[0]
			if f.Status != tc.status || f.Message != tc.message || f.Resource != tc.resource {
				t.Errorf("finding = %s %q %q; want %s %q %q", f.Status, f.Message, f.Resource, tc.status, tc.message, tc.resource)
			}
			if f.Region != "global" {
				t.Errorf("Region = %q; want global", f.Region)
			}
		})
	}
}

func TestAzureDefenderForARM_PerLocation(t *testing.T) {
	store := fixture(t, map[cache.Path]cache.Entry{
		models.KeyAzurePricings.At("eastus"):     data([]models.AzurePricing{{Name: "Arm", Tier: "Standard"}}),
		models.KeyAzurePricings.At("westeurope"): failed("throttled"),
	})
	findings := run(t, AzureDefenderForARMRule{}, store, azureSettings("eastus", "westeurope", "japaneast"))
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings (japaneast absent), got %+v", findings)
	}
	if findings[0].Region != "eastus" || findings[0].Status != models.StatusPass {
		t.Errorf("findings[0] = %+v", findings[0])
	}
	if findings[1].Region != "westeurope" || findings[1].Status != models.StatusUnknown {
		t.Errorf("findings[1] = %+v", findings[1])
	}
}
