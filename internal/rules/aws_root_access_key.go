package rules

import (
	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// AWSRootAccessKeyExistsRule flags accounts whose root user has active access
// keys. Root keys cannot be scoped by IAM policy.
type AWSRootAccessKeyExistsRule struct{}

func (r AWSRootAccessKeyExistsRule) ID() string { return "ROOT_ACCESS_KEY" }

func (r AWSRootAccessKeyExistsRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Root Account Access Keys Present",
		Category:          "IAM",
		Domain:            "Identity and Access Management",
		Severity:          models.SeverityCritical,
		Description:       "Ensures the AWS root account has no active access keys.",
		MoreInfo:          "Access keys on the root account grant programmatic, unrestricted access to the account and cannot be limited by IAM policies.",
		Link:              "https://docs.aws.amazon.com/IAM/latest/UserGuide/id_root-user.html",
		RecommendedAction: "Delete all root account access keys and use IAM users or roles with least-privilege policies instead.",
		APIs:              []cache.Key{models.KeyIAMAccountSummary},
		RealtimeTriggers:  []string{"iam:CreateAccessKey", "iam:DeleteAccessKey"},
		Compliance: map[string]string{
			"cis1": "1.4 Ensure no root user account access key exists",
		},
	}
}

func (r AWSRootAccessKeyExistsRule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyIAMAccountSummary, "account summary", true)
	if !ok {
		return nil
	}
	summary, ok := decodeValue[models.AWSAccountSummary](rctx, l, regionGlobal, "account summary")
	if !ok {
		return nil
	}
	resource := naming.AWSARN("iam", "", rctx.Settings.Account, "root")
	if summary.RootAccessKeysPresent {
		fail(rctx, "The AWS root account has active access keys", regionGlobal, resource)
		return nil
	}
	pass(rctx, "The root account has no access keys", regionGlobal, resource)
	return nil
}
