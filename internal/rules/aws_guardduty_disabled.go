package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// AWSGuardDutyDisabledRule flags regions with no enabled GuardDuty detector.
type AWSGuardDutyDisabledRule struct{}

func (r AWSGuardDutyDisabledRule) ID() string { return "GUARDDUTY_DISABLED" }

func (r AWSGuardDutyDisabledRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "GuardDuty Not Enabled",
		Category:          "GuardDuty",
		Domain:            "Management and Governance",
		Severity:          models.SeverityHigh,
		Description:       "Ensures GuardDuty threat detection is enabled in every scanned region.",
		Link:              "https://docs.aws.amazon.com/guardduty/latest/ug/guardduty_settingup.html",
		RecommendedAction: "Enable GuardDuty in all active regions to ensure continuous threat detection.",
		APIs:              []cache.Key{models.KeyGuardDutyDetectors},
		RealtimeTriggers:  []string{"guardduty:CreateDetector", "guardduty:DeleteDetector", "guardduty:UpdateDetector"},
	}
}

func (r AWSGuardDutyDisabledRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyGuardDutyDetectors, "GuardDuty detectors", func(region string, l Lookup) {
		if l.State == Empty {
			fail(rctx, fmt.Sprintf("AWS GuardDuty is not enabled in region %s", region), region, "")
			return
		}
		detectors, ok := decode[models.AWSGuardDutyDetector](rctx, l, region, "GuardDuty detectors")
		if !ok {
			return
		}
		for _, d := range detectors {
			if d.Status == "ENABLED" {
				pass(rctx, "GuardDuty is enabled", region, d.DetectorID)
				return
			}
		}
		fail(rctx, fmt.Sprintf("GuardDuty detector exists but is not enabled in region %s", region), region, detectors[0].DetectorID)
	})
	return nil
}
