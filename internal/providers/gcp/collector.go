// Package gcp provides the GCP collectors, backed by the Compute Engine API.
package gcp

import (
	"context"
	"fmt"
	"path"
	"sort"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// Collectors builds the GCP collector set for one project.
type Collectors struct {
	project string
	svc     *compute.Service
}

// NewCollectors creates a Compute client with Application Default
// Credentials unless opts say otherwise.
func NewCollectors(ctx context.Context, project string, opts ...option.ClientOption) (*Collectors, error) {
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create compute client: %w", err)
	}
	return &Collectors{project: project, svc: svc}, nil
}

// All returns every GCP collector.
func (c *Collectors) All() []collect.Collector {
	return []collect.Collector{
		collect.Global(models.KeyGCPProject, c.getProject),
		collect.Zonal(models.KeyGCPInstances, c.listInstances),
	}
}

func (c *Collectors) getProject(ctx context.Context, _ collect.Target) (any, error) {
	p, err := c.svc.Projects.Get(c.project).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", c.project, err)
	}
	return models.GCPProject{
		ProjectID:             p.Name,
		DefaultServiceAccount: p.DefaultServiceAccount,
	}, nil
}

// listInstances lists the instances of one zone, following pagination.
func (c *Collectors) listInstances(ctx context.Context, t collect.Target) (any, error) {
	zone := string(t.Scope)
	instances := []models.GCPInstance{}
	err := c.svc.Instances.List(c.project, zone).Pages(ctx, func(page *compute.InstanceList) error {
		for _, in := range page.Items {
			instances = append(instances, convertInstance(in))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list instances in %s: %w", zone, err)
	}
	return instances, nil
}

func convertInstance(in *compute.Instance) models.GCPInstance {
	out := models.GCPInstance{
		Name:   in.Name,
		Zone:   path.Base(in.Zone),
		Status: in.Status,
	}
	for _, sa := range in.ServiceAccounts {
		out.ServiceAccounts = append(out.ServiceAccounts, models.GCPServiceAccount{
			Email:  sa.Email,
			Scopes: sa.Scopes,
		})
	}
	for _, nic := range in.NetworkInterfaces {
		mn := models.GCPNetworkInterface{Name: nic.Name, Network: path.Base(nic.Network)}
		for _, ac := range nic.AccessConfigs {
			mn.AccessConfigs = append(mn.AccessConfigs, models.GCPAccessConfig{
				Name:  ac.Name,
				Type:  ac.Type,
				NatIP: ac.NatIP,
			})
		}
		out.NetworkInterfaces = append(out.NetworkInterfaces, mn)
	}
	return out
}

// DiscoverZones returns the project's zones grouped by region, restricted to
// regions when it is non-empty. Zone lists are sorted.
func (c *Collectors) DiscoverZones(ctx context.Context, regions []string) (map[string][]string, error) {
	want := make(map[string]bool, len(regions))
	for _, r := range regions {
		want[r] = true
	}

	out := make(map[string][]string)
	err := c.svc.Zones.List(c.project).Pages(ctx, func(page *compute.ZoneList) error {
		for _, z := range page.Items {
			region := path.Base(z.Region)
			if len(want) > 0 && !want[region] {
				continue
			}
			out[region] = append(out[region], z.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list zones of %s: %w", c.project, err)
	}
	for r := range out {
		sort.Strings(out[r])
	}
	return out, nil
}
