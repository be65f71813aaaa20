package awssecurity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// accountSummary reads the root account flags from the IAM summary map.
// AccountAccessKeysPresent counts root access keys; AccountMFAEnabled is 1
// when root has virtual or hardware MFA.
func (c *Collectors) accountSummary(ctx context.Context, _ collect.Target) (any, error) {
	out, err := c.clientsFor("").IAM.GetAccountSummary(ctx, &iamsvc.GetAccountSummaryInput{})
	if err != nil {
		return nil, fmt.Errorf("get IAM account summary: %w", err)
	}
	return models.AWSAccountSummary{
		RootAccessKeysPresent: out.SummaryMap["AccountAccessKeysPresent"] > 0,
		RootMFAEnabled:        out.SummaryMap["AccountMFAEnabled"] > 0,
	}, nil
}

func (c *Collectors) listUsers(ctx context.Context, _ collect.Target) (any, error) {
	paginator := iamsvc.NewListUsersPaginator(c.clientsFor("").IAM, &iamsvc.ListUsersInput{})
	users := []models.AWSIAMUser{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list IAM users: %w", err)
		}
		for _, u := range page.Users {
			users = append(users, models.AWSIAMUser{
				UserName: aws.ToString(u.UserName),
				ARN:      aws.ToString(u.Arn),
			})
		}
	}
	return users, nil
}

// loginProfile reports whether the user has a console password. IAM answers
// NoSuchEntity for users without one; that is data, not an error.
func (c *Collectors) loginProfile(ctx context.Context, _ collect.Target, u models.AWSIAMUser) (any, error) {
	_, err := c.clientsFor("").IAM.GetLoginProfile(ctx, &iamsvc.GetLoginProfileInput{
		UserName: aws.String(u.UserName),
	})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return models.AWSLoginProfile{UserName: u.UserName, Exists: false}, nil
		}
		return nil, fmt.Errorf("get login profile for %s: %w", u.UserName, err)
	}
	return models.AWSLoginProfile{UserName: u.UserName, Exists: true}, nil
}

func (c *Collectors) mfaDevices(ctx context.Context, _ collect.Target, u models.AWSIAMUser) (any, error) {
	out, err := c.clientsFor("").IAM.ListMFADevices(ctx, &iamsvc.ListMFADevicesInput{
		UserName: aws.String(u.UserName),
	})
	if err != nil {
		return nil, fmt.Errorf("list MFA devices for %s: %w", u.UserName, err)
	}
	devices := make([]models.AWSMFADevice, 0, len(out.MFADevices))
	for _, d := range out.MFADevices {
		devices = append(devices, models.AWSMFADevice{SerialNumber: aws.ToString(d.SerialNumber)})
	}
	return devices, nil
}
