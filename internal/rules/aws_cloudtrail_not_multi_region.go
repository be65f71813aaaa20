package rules

import (
	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// AWSCloudTrailNotMultiRegionRule flags accounts with no multi-region trail.
type AWSCloudTrailNotMultiRegionRule struct{}

func (r AWSCloudTrailNotMultiRegionRule) ID() string { return "CLOUDTRAIL_NOT_MULTI_REGION" }

func (r AWSCloudTrailNotMultiRegionRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "CloudTrail Multi-Region Trail Missing",
		Category:          "CloudTrail",
		Domain:            "Compliance",
		Severity:          models.SeverityHigh,
		Description:       "Ensures at least one CloudTrail trail records events from all regions.",
		MoreInfo:          "API activity in regions without a trail goes unlogged.",
		Link:              "https://docs.aws.amazon.com/awscloudtrail/latest/userguide/receive-cloudtrail-log-files-from-multiple-regions.html",
		RecommendedAction: "Create a multi-region CloudTrail trail that captures events from all AWS regions and stores logs in a secure S3 bucket.",
		APIs:              []cache.Key{models.KeyCloudTrailTrails},
		RealtimeTriggers:  []string{"cloudtrail:CreateTrail", "cloudtrail:UpdateTrail", "cloudtrail:DeleteTrail"},
		Compliance: map[string]string{
			"cis1": "3.1 Ensure CloudTrail is enabled in all regions",
		},
	}
}

func (r AWSCloudTrailNotMultiRegionRule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyCloudTrailTrails, "CloudTrail trails", true)
	if !ok {
		return nil
	}
	if l.State == Empty {
		fail(rctx, "No CloudTrail trails are configured", regionGlobal, "")
		return nil
	}
	trails, ok := decode[models.AWSCloudTrail](rctx, l, regionGlobal, "CloudTrail trails")
	if !ok {
		return nil
	}
	for _, t := range trails {
		if t.IsMultiRegionTrail {
			pass(rctx, "A multi-region CloudTrail trail is configured", regionGlobal, t.Name)
			return nil
		}
	}
	fail(rctx, "No multi-region CloudTrail trail is configured", regionGlobal, "")
	return nil
}
