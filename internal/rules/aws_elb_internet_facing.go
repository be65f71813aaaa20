package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// AWSLoadBalancerInternetFacingRule reports internet-facing ELBv2 load
// balancers as WARN: exposure is often intended but must be reviewed.
type AWSLoadBalancerInternetFacingRule struct{}

func (r AWSLoadBalancerInternetFacingRule) ID() string { return "ELB_INTERNET_FACING" }

func (r AWSLoadBalancerInternetFacingRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Internet-Facing Load Balancer",
		Category:          "ELBv2",
		Domain:            "Content Delivery",
		Severity:          models.SeverityLow,
		Description:       "Lists load balancers reachable from the internet for review.",
		Link:              "https://docs.aws.amazon.com/elasticloadbalancing/latest/application/application-load-balancers.html#load-balancer-scheme",
		RecommendedAction: "Use the internal scheme for load balancers that do not serve public traffic.",
		APIs:              []cache.Key{models.KeyELBv2LoadBalancers},
		RealtimeTriggers:  []string{"elasticloadbalancing:CreateLoadBalancer"},
	}
}

func (r AWSLoadBalancerInternetFacingRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyELBv2LoadBalancers, "load balancers", func(region string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No load balancers found", region, "")
			return
		}
		lbs, ok := decode[models.AWSLoadBalancer](rctx, l, region, "load balancers")
		if !ok {
			return
		}
		for _, lb := range lbs {
			if lb.Scheme == "internet-facing" {
				rctx.Add(models.StatusWarn, fmt.Sprintf("%s load balancer %s is internet-facing", lb.Type, lb.Name), region, lb.ARN)
				continue
			}
			pass(rctx, fmt.Sprintf("Load balancer %s is internal", lb.Name), region, lb.ARN)
		}
	})
	return nil
}
