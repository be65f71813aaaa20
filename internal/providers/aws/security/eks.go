package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ekssvc "github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

func (c *Collectors) listClusters(ctx context.Context, t collect.Target) (any, error) {
	paginator := ekssvc.NewListClustersPaginator(c.clientsFor(t.Region).EKS, &ekssvc.ListClustersInput{})
	names := []models.AWSEKSClusterName{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list EKS clusters in %s: %w", t.Region, err)
		}
		for _, n := range page.Clusters {
			names = append(names, models.AWSEKSClusterName{Name: n})
		}
	}
	return names, nil
}

// describeCluster records the enabled control-plane log types and whether
// the API endpoint is public.
func (c *Collectors) describeCluster(ctx context.Context, t collect.Target, n models.AWSEKSClusterName) (any, error) {
	out, err := c.clientsFor(t.Region).EKS.DescribeCluster(ctx, &ekssvc.DescribeClusterInput{
		Name: aws.String(n.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("describe EKS cluster %s in %s: %w", n.Name, t.Region, err)
	}
	if out.Cluster == nil {
		return nil, fmt.Errorf("describe EKS cluster %s in %s: empty response", n.Name, t.Region)
	}

	cluster := models.AWSEKSCluster{Name: n.Name, EnabledLogTypes: []string{}}
	if vpc := out.Cluster.ResourcesVpcConfig; vpc != nil {
		cluster.EndpointPublicAccess = vpc.EndpointPublicAccess
	}
	if out.Cluster.Logging != nil {
		for _, setup := range out.Cluster.Logging.ClusterLogging {
			if !aws.ToBool(setup.Enabled) {
				continue
			}
			for _, lt := range setup.Types {
				cluster.EnabledLogTypes = append(cluster.EnabledLogTypes, string(lt))
			}
		}
	}
	return cluster, nil
}
