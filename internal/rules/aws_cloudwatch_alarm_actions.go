package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// AWSCloudWatchAlarmActionsRule flags metric alarms that would fire without
// notifying anyone: actions disabled, or no alarm action configured.
type AWSCloudWatchAlarmActionsRule struct{}

func (r AWSCloudWatchAlarmActionsRule) ID() string { return "CLOUDWATCH_ALARM_ACTIONS_DISABLED" }

func (r AWSCloudWatchAlarmActionsRule) Metadata() Metadata {
	return Metadata{
		ID:          r.ID(),
		Title:       "CloudWatch Alarm Actions Enabled",
		Category:    "CloudWatch",
		Domain:      "Management and Governance",
		Severity:    models.SeverityMedium,
		Description: "Ensures that CloudWatch metric alarms have actions enabled and at least one alarm action.",
		MoreInfo: "Monitoring alarms for security events such as root account usage or unauthorized API calls " +
			"only help when they notify someone. Alarms with disabled or missing actions change state silently.",
		Link:              "https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/AlarmThatSendsEmail.html",
		RecommendedAction: "Enable alarm actions and attach an SNS topic or other action to every CloudWatch alarm.",
		APIs:              []cache.Key{models.KeyCloudWatchAlarms},
		RealtimeTriggers: []string{
			"cloudwatch:PutMetricAlarm", "cloudwatch:DeleteAlarms",
			"cloudwatch:EnableAlarmActions", "cloudwatch:DisableAlarmActions",
		},
	}
}

// Evaluate emits one finding per alarm and a PASS for regions without
// alarms.
func (r AWSCloudWatchAlarmActionsRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyCloudWatchAlarms, "CloudWatch alarms", func(region string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No CloudWatch alarms found", region, "")
			return
		}
		alarms, ok := decode[models.AWSCloudWatchAlarm](rctx, l, region, "CloudWatch alarms")
		if !ok {
			return
		}
		for _, a := range alarms {
			switch {
			case !a.ActionsEnabled:
				fail(rctx, fmt.Sprintf("CloudWatch alarm %s has actions disabled", a.Name), region, a.ARN)
			case len(a.AlarmActions) == 0:
				fail(rctx, fmt.Sprintf("CloudWatch alarm %s has no alarm actions", a.Name), region, a.ARN)
			default:
				pass(rctx, fmt.Sprintf("CloudWatch alarm %s has actions enabled", a.Name), region, a.ARN)
			}
		}
	})
	return nil
}
