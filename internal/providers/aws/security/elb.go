package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

func (c *Collectors) loadBalancers(ctx context.Context, t collect.Target) (any, error) {
	paginator := elbv2svc.NewDescribeLoadBalancersPaginator(c.clientsFor(t.Region).ELBv2, &elbv2svc.DescribeLoadBalancersInput{})
	lbs := []models.AWSLoadBalancer{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe load balancers in %s: %w", t.Region, err)
		}
		for _, lb := range page.LoadBalancers {
			lbs = append(lbs, models.AWSLoadBalancer{
				Name:   aws.ToString(lb.LoadBalancerName),
				ARN:    aws.ToString(lb.LoadBalancerArn),
				Type:   string(lb.Type),
				Scheme: string(lb.Scheme),
			})
		}
	}
	return lbs, nil
}
