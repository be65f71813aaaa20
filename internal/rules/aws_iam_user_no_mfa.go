package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// AWSIAMUserWithoutMFARule flags IAM users with console access and no MFA
// device. API-only users (no login profile) are not evaluated.
type AWSIAMUserWithoutMFARule struct{}

func (r AWSIAMUserWithoutMFARule) ID() string { return "IAM_USER_NO_MFA" }

func (r AWSIAMUserWithoutMFARule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "IAM User Console Access Without MFA",
		Category:          "IAM",
		Domain:            "Identity and Access Management",
		Severity:          models.SeverityMedium,
		Description:       "Ensures IAM users that can sign in to the console have an MFA device.",
		Link:              "https://docs.aws.amazon.com/IAM/latest/UserGuide/id_credentials_mfa.html",
		RecommendedAction: "Enable MFA for all IAM users that have console access.",
		APIs:              []cache.Key{models.KeyIAMUsers, models.KeyIAMLoginProfile, models.KeyIAMMFADevices},
		RealtimeTriggers:  []string{"iam:CreateLoginProfile", "iam:EnableMFADevice", "iam:DeactivateMFADevice"},
		Compliance: map[string]string{
			"cis1": "1.10 Ensure multi-factor authentication is enabled for all IAM users that have a console password",
		},
	}
}

// Evaluate emits one finding per console user. The per-user collectors are
// skipped as a whole when the user list failed; that case is already covered
// by the UNKNOWN emitted for iam:listUsers.
func (r AWSIAMUserWithoutMFARule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyIAMUsers, "IAM users", true)
	if !ok {
		return nil
	}
	if l.State == Empty {
		pass(rctx, "No IAM users found", regionGlobal, "")
		return nil
	}
	users, ok := decode[models.AWSIAMUser](rctx, l, regionGlobal, "IAM users")
	if !ok {
		return nil
	}

	for _, u := range users {
		scope := cache.Scope(u.UserName)
		resource := u.ARN
		if resource == "" {
			resource = naming.AWSARN("iam", "", rctx.Settings.Account, "user/"+u.UserName)
		}

		lp := rctx.Lookup(models.KeyIAMLoginProfile.At(scope))
		switch lp.State {
		case Absent:
			continue
		case Failed:
			rctx.AddError(fmt.Sprintf("Unable to query login profile for user %s: %s", u.UserName, lp.Entry.ErrorMessage()), regionGlobal, lp.Err())
			continue
		}
		profile, ok := decodeValue[models.AWSLoginProfile](rctx, lp, regionGlobal, "login profile")
		if !ok || !profile.Exists {
			continue
		}

		mfa := rctx.Lookup(models.KeyIAMMFADevices.At(scope))
		switch mfa.State {
		case Absent:
			continue
		case Failed:
			rctx.AddError(fmt.Sprintf("Unable to query MFA devices for user %s: %s", u.UserName, mfa.Entry.ErrorMessage()), regionGlobal, mfa.Err())
		case Empty:
			fail(rctx, fmt.Sprintf("IAM user %q has console access but no MFA device registered", u.UserName), regionGlobal, resource)
		default:
			pass(rctx, fmt.Sprintf("IAM user %q has an MFA device", u.UserName), regionGlobal, resource)
		}
	}
	return nil
}
