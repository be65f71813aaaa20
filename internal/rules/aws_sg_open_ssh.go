package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

const (
	sshPort = 22
	rdpPort = 3389
)

// AWSSecurityGroupOpenSSHRule flags EC2 security groups that allow unrestricted
// inbound access to remote admin ports (SSH port 22 or RDP port 3389) from
// the public internet (0.0.0.0/0 or ::/0). Each security group produces at
// most one finding regardless of how many open rules it contains.
type AWSSecurityGroupOpenSSHRule struct{}

func (r AWSSecurityGroupOpenSSHRule) ID() string { return "SG_OPEN_SSH" }

func (r AWSSecurityGroupOpenSSHRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Security Group With Open Remote Admin Access",
		Category:          "EC2",
		Domain:            "Compute",
		Severity:          models.SeverityHigh,
		Description:       "Ensures security groups do not allow SSH or RDP from the internet.",
		MoreInfo:          "Remote administration ports exposed to 0.0.0.0/0 are continuously scanned and brute-forced.",
		Link:              "https://docs.aws.amazon.com/vpc/latest/userguide/vpc-security-groups.html",
		RecommendedAction: "Restrict SSH/RDP access to specific trusted IP ranges or use AWS Systems Manager Session Manager instead.",
		APIs:              []cache.Key{models.KeyEC2SecurityGroups},
		RealtimeTriggers:  []string{"ec2:AuthorizeSecurityGroupIngress", "ec2:ModifySecurityGroupRules"},
		Compliance: map[string]string{
			"cis1": "5.2 Ensure no security groups allow ingress from 0.0.0.0/0 to remote server administration ports",
		},
	}
}

// Evaluate emits one FAIL per exposed group and one PASS per region without
// exposed groups.
func (r AWSSecurityGroupOpenSSHRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyEC2SecurityGroups, "security groups", func(region string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No security groups found", region, "")
			return
		}
		sgRules, ok := decode[models.AWSSecurityGroupRule](rctx, l, region, "security groups")
		if !ok {
			return
		}
		seen := make(map[string]bool)
		for _, sg := range sgRules {
			if !coversPort(sg, sshPort) && !coversPort(sg, rdpPort) {
				continue
			}
			if sg.CIDR != "0.0.0.0/0" && sg.CIDR != "::/0" {
				continue
			}
			if seen[sg.GroupID] {
				continue // one finding per security group
			}
			seen[sg.GroupID] = true
			fail(rctx,
				fmt.Sprintf("Security group %s allows unrestricted remote admin access (ports %d-%d) from %s", sg.GroupID, sg.FromPort, sg.ToPort, sg.CIDR),
				region,
				naming.AWSARN("ec2", region, rctx.Settings.Account, "security-group/"+sg.GroupID))
		}
		if len(seen) == 0 {
			pass(rctx, "No security groups allow remote admin access from the internet", region, "")
		}
	})
	return nil
}

// coversPort reports whether the rule's port range includes port. Protocol
// "-1" (all traffic) covers every port.
func coversPort(sg models.AWSSecurityGroupRule, port int) bool {
	if sg.Protocol == "-1" {
		return true
	}
	return sg.FromPort <= port && port <= sg.ToPort
}
