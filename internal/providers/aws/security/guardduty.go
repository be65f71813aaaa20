package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	guardduty "github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// guardDutyDetectors lists the region's detectors with their status. A
// region without detectors yields an empty list.
func (c *Collectors) guardDutyDetectors(ctx context.Context, t collect.Target) (any, error) {
	client := c.clientsFor(t.Region).GuardDuty
	listOut, err := client.ListDetectors(ctx, &guardduty.ListDetectorsInput{})
	if err != nil {
		return nil, fmt.Errorf("list GuardDuty detectors in %s: %w", t.Region, err)
	}

	detectors := make([]models.AWSGuardDutyDetector, 0, len(listOut.DetectorIds))
	for _, id := range listOut.DetectorIds {
		detOut, err := client.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: aws.String(id)})
		if err != nil {
			return nil, fmt.Errorf("get GuardDuty detector %s in %s: %w", id, t.Region, err)
		}
		detectors = append(detectors, models.AWSGuardDutyDetector{
			DetectorID: id,
			Status:     string(detOut.Status),
		})
	}
	return detectors, nil
}
