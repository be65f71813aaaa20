package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// describeTrails lists the account's own trails; shadow copies replicated
// from other regions are excluded.
func (c *Collectors) describeTrails(ctx context.Context, _ collect.Target) (any, error) {
	out, err := c.clientsFor("").CloudTrail.DescribeTrails(ctx, &cloudtrailsvc.DescribeTrailsInput{
		IncludeShadowTrails: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe CloudTrail trails: %w", err)
	}
	trails := make([]models.AWSCloudTrail, 0, len(out.TrailList))
	for _, tr := range out.TrailList {
		trails = append(trails, models.AWSCloudTrail{
			Name:               aws.ToString(tr.Name),
			HomeRegion:         aws.ToString(tr.HomeRegion),
			IsMultiRegionTrail: aws.ToBool(tr.IsMultiRegionTrail),
		})
	}
	return trails, nil
}
