package rules

import (
	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// AWSRootAccountMFADisabledRule flags AWS accounts where the root account does
// not have MFA enabled. Without MFA, a compromised root password gives an
// attacker unrestricted account access with no second factor to stop them.
type AWSRootAccountMFADisabledRule struct{}

func (r AWSRootAccountMFADisabledRule) ID() string { return "ROOT_ACCOUNT_MFA_DISABLED" }

func (r AWSRootAccountMFADisabledRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Root Account MFA Not Enabled",
		Category:          "IAM",
		Domain:            "Identity and Access Management",
		Severity:          models.SeverityCritical,
		Description:       "Ensures the AWS root account has a multi-factor authentication device enabled.",
		MoreInfo:          "The root account has unrestricted access to every resource in the account. A password alone is a single point of compromise.",
		Link:              "https://docs.aws.amazon.com/IAM/latest/UserGuide/id_root-user.html#id_root-user_manage_mfa",
		RecommendedAction: "Enable MFA on the root account using a hardware token or virtual MFA device immediately.",
		APIs:              []cache.Key{models.KeyIAMAccountSummary},
		RealtimeTriggers:  []string{"iam:EnableMFADevice", "iam:DeactivateMFADevice"},
		Compliance: map[string]string{
			"cis1": "1.5 Ensure MFA is enabled for the root user account",
		},
	}
}

// Evaluate emits one global finding. The account summary is required: a
// missing or failed summary is UNKNOWN rather than a false positive.
func (r AWSRootAccountMFADisabledRule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyIAMAccountSummary, "account summary", true)
	if !ok {
		return nil
	}
	summary, ok := decodeValue[models.AWSAccountSummary](rctx, l, regionGlobal, "account summary")
	if !ok {
		return nil
	}
	resource := naming.AWSARN("iam", "", rctx.Settings.Account, "root")
	if summary.RootMFAEnabled {
		pass(rctx, "The root account has MFA enabled", regionGlobal, resource)
		return nil
	}
	fail(rctx, "The AWS root account does not have MFA enabled", regionGlobal, resource)
	return nil
}
