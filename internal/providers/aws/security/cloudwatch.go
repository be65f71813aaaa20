package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudwatchsvc "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// describeAlarms lists the region's metric alarms with their actions.
func (c *Collectors) describeAlarms(ctx context.Context, t collect.Target) (any, error) {
	paginator := cloudwatchsvc.NewDescribeAlarmsPaginator(c.clientsFor(t.Region).CloudWatch, &cloudwatchsvc.DescribeAlarmsInput{
		AlarmTypes: []cwtypes.AlarmType{cwtypes.AlarmTypeMetricAlarm},
	})
	alarms := []models.AWSCloudWatchAlarm{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe CloudWatch alarms in %s: %w", t.Region, err)
		}
		for _, a := range page.MetricAlarms {
			alarms = append(alarms, models.AWSCloudWatchAlarm{
				Name:           aws.ToString(a.AlarmName),
				ARN:            aws.ToString(a.AlarmArn),
				Namespace:      aws.ToString(a.Namespace),
				MetricName:     aws.ToString(a.MetricName),
				State:          string(a.StateValue),
				ActionsEnabled: aws.ToBool(a.ActionsEnabled),
				AlarmActions:   a.AlarmActions,
			})
		}
	}
	return alarms, nil
}
