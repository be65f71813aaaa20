package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	rdssvc "github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

func (c *Collectors) dbInstances(ctx context.Context, t collect.Target) (any, error) {
	paginator := rdssvc.NewDescribeDBInstancesPaginator(c.clientsFor(t.Region).RDS, &rdssvc.DescribeDBInstancesInput{})
	instances := []models.AWSRDSInstance{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe DB instances in %s: %w", t.Region, err)
		}
		for _, db := range page.DBInstances {
			instances = append(instances, models.AWSRDSInstance{
				DBInstanceID:     aws.ToString(db.DBInstanceIdentifier),
				Engine:           aws.ToString(db.Engine),
				StorageEncrypted: aws.ToBool(db.StorageEncrypted),
			})
		}
	}
	return instances, nil
}
