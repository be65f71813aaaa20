package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// AWSConfigDisabledRule flags regions where no AWS Config recorder is
// actively recording.
type AWSConfigDisabledRule struct{}

func (r AWSConfigDisabledRule) ID() string { return "AWS_CONFIG_DISABLED" }

func (r AWSConfigDisabledRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "AWS Config Not Recording",
		Category:          "ConfigService",
		Domain:            "Management and Governance",
		Severity:          models.SeverityHigh,
		Description:       "Ensures AWS Config records resource changes in every scanned region.",
		Link:              "https://docs.aws.amazon.com/config/latest/developerguide/stop-start-recorder.html",
		RecommendedAction: "Enable AWS Config with a configuration recorder and delivery channel in all active regions.",
		APIs:              []cache.Key{models.KeyConfigRecorders},
		RealtimeTriggers:  []string{"config:StartConfigurationRecorder", "config:StopConfigurationRecorder"},
		Compliance: map[string]string{
			"cis1": "3.5 Ensure AWS Config is enabled in all regions",
		},
	}
}

func (r AWSConfigDisabledRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyConfigRecorders, "configuration recorders", func(region string, l Lookup) {
		if l.State == Empty {
			fail(rctx, fmt.Sprintf("AWS Config is not recording in region %s", region), region, "")
			return
		}
		recorders, ok := decode[models.AWSConfigRecorder](rctx, l, region, "configuration recorders")
		if !ok {
			return
		}
		for _, rec := range recorders {
			if rec.Recording {
				pass(rctx, "AWS Config is recording", region, rec.Name)
				return
			}
		}
		fail(rctx, fmt.Sprintf("AWS Config is not recording in region %s", region), region, recorders[0].Name)
	})
	return nil
}
