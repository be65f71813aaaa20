package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	awssecurity "github.com/pankaj-dahiya-devops/posture/internal/providers/aws/security"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/azure"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/gcp"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/github"
	kube "github.com/pankaj-dahiya-devops/posture/internal/providers/kubernetes"
	"github.com/pankaj-dahiya-devops/posture/internal/regions"
)

// targetFlags are the provider selection flags of scan.
type targetFlags struct {
	profile       string
	project       string
	subscription  string
	org           string
	regions       []string
	contexts      []string
	discoverZones bool
}

// target is a resolved scan target: who is audited, where, and with which
// collectors.
type target struct {
	account       string
	profile       string
	regions       []string
	zones         map[string][]string
	collectors    []collect.Collector
	locationLabel string
}

type targetFunc func(ctx context.Context, a *app, f targetFlags) (*target, error)

func defaultTargets() map[string]targetFunc {
	return map[string]targetFunc{
		"aws":        awsTarget,
		"azure":      azureTarget,
		"gcp":        gcpTarget,
		"github":     githubTarget,
		"kubernetes": kubernetesTarget,
	}
}

// regionsFrom returns the first non-empty list.
func regionsFrom(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func awsTarget(ctx context.Context, a *app, f targetFlags) (*target, error) {
	pc, err := a.awsProvider.LoadProfile(ctx, f.profile)
	if err != nil {
		return nil, err
	}
	regionList := regionsFrom(f.regions, a.cfg.Scan.Regions)
	if len(regionList) == 0 {
		regionList, err = a.awsProvider.GetActiveRegions(ctx, pc)
		if err != nil {
			a.logger.Warn().Err(err).Msg("region discovery failed; using the default region list")
			regionList = regions.AWSDefault
		}
	}
	return &target{
		account:    pc.AccountID,
		profile:    pc.ProfileName,
		regions:    regionList,
		collectors: awssecurity.NewCollectors(pc.Config).All(),
	}, nil
}

// azureTarget scans one subscription. Locations default to the single
// pseudo-location the Defender plans live in.
func azureTarget(_ context.Context, _ *app, f targetFlags) (*target, error) {
	sub := f.subscription
	if sub == "" {
		sub = os.Getenv("AZURE_SUBSCRIPTION_ID")
	}
	if sub == "" {
		return nil, errors.New("azure: --subscription or AZURE_SUBSCRIPTION_ID is required")
	}
	c, err := azure.NewCollectors(sub, nil, nil)
	if err != nil {
		return nil, err
	}
	return &target{
		account:       sub,
		profile:       sub,
		regions:       regionsFrom(f.regions, azure.DefaultLocations),
		collectors:    c.All(),
		locationLabel: locationLabels["azure"],
	}, nil
}

func gcpTarget(ctx context.Context, a *app, f targetFlags) (*target, error) {
	project := f.project
	if project == "" {
		project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if project == "" {
		return nil, errors.New("gcp: --project or GOOGLE_CLOUD_PROJECT is required")
	}
	c, err := gcp.NewCollectors(ctx, project)
	if err != nil {
		return nil, err
	}

	regionList := regionsFrom(f.regions, a.cfg.Scan.Regions, regions.GCPRegions())
	zones := regions.ZonesFor(regionList)
	if f.discoverZones {
		if zones, err = c.DiscoverZones(ctx, regionList); err != nil {
			return nil, err
		}
	}
	return &target{
		account:    project,
		profile:    project,
		regions:    regionList,
		zones:      zones,
		collectors: c.All(),
	}, nil
}

func githubTarget(_ context.Context, _ *app, f targetFlags) (*target, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, errors.New("github: GITHUB_TOKEN is required")
	}
	account := f.org
	if account == "" {
		account = "installation"
	}
	return &target{
		account:    account,
		collectors: github.NewCollectors(nil, token, f.org).All(),
	}, nil
}

// kubernetesTarget treats every kubeconfig context as a region.
func kubernetesTarget(_ context.Context, a *app, f targetFlags) (*target, error) {
	contexts := f.contexts
	if len(contexts) == 0 {
		_, current, err := a.kubeContexts()
		if err != nil {
			return nil, err
		}
		if current == "" {
			return nil, errors.New("kubernetes: no current context; pass --context")
		}
		contexts = []string{current}
	}
	return &target{
		account:       strings.Join(contexts, ","),
		profile:       contexts[0],
		regions:       contexts,
		collectors:    kube.NewCollectors(a.kubeProvider).All(),
		locationLabel: locationLabels["kubernetes"],
	}, nil
}
