package awssecurity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// securityGroupRules flattens every inbound permission of the region's
// security groups to one record per IPv4 or IPv6 CIDR. Protocol "-1" carries
// no ports and stands for all traffic.
func (c *Collectors) securityGroupRules(ctx context.Context, t collect.Target) (any, error) {
	paginator := ec2svc.NewDescribeSecurityGroupsPaginator(c.clientsFor(t.Region).EC2, &ec2svc.DescribeSecurityGroupsInput{})
	rules := []models.AWSSecurityGroupRule{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe security groups in %s: %w", t.Region, err)
		}
		for _, sg := range page.SecurityGroups {
			groupID := aws.ToString(sg.GroupId)
			groupName := aws.ToString(sg.GroupName)
			for _, perm := range sg.IpPermissions {
				base := models.AWSSecurityGroupRule{
					GroupID:   groupID,
					GroupName: groupName,
					Protocol:  aws.ToString(perm.IpProtocol),
					FromPort:  int(aws.ToInt32(perm.FromPort)),
					ToPort:    int(aws.ToInt32(perm.ToPort)),
				}
				for _, r := range perm.IpRanges {
					rule := base
					rule.CIDR = aws.ToString(r.CidrIp)
					rules = append(rules, rule)
				}
				for _, r := range perm.Ipv6Ranges {
					rule := base
					rule.CIDR = aws.ToString(r.CidrIpv6)
					rules = append(rules, rule)
				}
			}
		}
	}
	return rules, nil
}
