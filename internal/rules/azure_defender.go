package rules

import (
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// checkDefenderPlan emits one finding for the Defender plan named plan in
// every scanned location: PASS when its tier is Standard, FAIL when it is
// on another tier or missing.
func checkDefenderPlan(rctx *RuleContext, plan, display string) {
	forEachRegion(rctx, models.KeyAzurePricings, "Pricing", func(location string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No Pricing information found", location, "")
			return
		}
		pricings, ok := decode[models.AzurePricing](rctx, l, location, "Pricing")
		if !ok {
			return
		}
		for _, p := range pricings {
			if !strings.EqualFold(p.Name, plan) {
				continue
			}
			if strings.EqualFold(p.Tier, "standard") {
				pass(rctx, "Azure Defender is enabled for "+display, location, p.ID)
			} else {
				fail(rctx, "Azure Defender is not enabled for "+display, location, p.ID)
			}
			return
		}
		fail(rctx, "Azure Defender is not enabled for "+display, location, "")
	})
}

// AzureDefenderForARMRule checks the Microsoft Defender plan for Azure
// Resource Manager.
type AzureDefenderForARMRule struct{}

func (r AzureDefenderForARMRule) ID() string { return "ENABLE_DEFENDER_FOR_ARM" }

func (r AzureDefenderForARMRule) Metadata() Metadata {
	return Metadata{
		ID:          r.ID(),
		Title:       "Enable Defender For Resource Manager",
		Category:    "Defender",
		Domain:      "Management and Governance",
		Severity:    models.SeverityMedium,
		Description: "Ensures that Microsoft Defender is enabled for Resource Manager.",
		MoreInfo: "Turning on Microsoft Defender for Resource Manager enables threat detection, providing threat intelligence, " +
			"anomaly detection, and behavior analytics in the Microsoft Defender for Cloud.",
		Link:              "https://learn.microsoft.com/en-us/azure/defender-for-cloud/defender-for-resource-manager-introduction",
		RecommendedAction: "Enable Microsoft Defender for Resource Manager in Defender plans for the subscription.",
		APIs:              []cache.Key{models.KeyAzurePricings},
		RealtimeTriggers:  []string{"microsoftsecurity:pricings:write", "microsoftsecurity:pricings:delete"},
	}
}

func (r AzureDefenderForARMRule) Evaluate(rctx *RuleContext) error {
	checkDefenderPlan(rctx, "arm", "Resource Manager")
	return nil
}
