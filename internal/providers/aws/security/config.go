package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

func (c *Collectors) configRecorders(ctx context.Context, t collect.Target) (any, error) {
	out, err := c.clientsFor(t.Region).Config.DescribeConfigurationRecorderStatus(ctx, &configsvc.DescribeConfigurationRecorderStatusInput{})
	if err != nil {
		return nil, fmt.Errorf("describe configuration recorder status in %s: %w", t.Region, err)
	}
	recorders := make([]models.AWSConfigRecorder, 0, len(out.ConfigurationRecordersStatus))
	for _, s := range out.ConfigurationRecordersStatus {
		recorders = append(recorders, models.AWSConfigRecorder{
			Name:      aws.ToString(s.Name),
			Recording: s.Recording,
		})
	}
	return recorders, nil
}
