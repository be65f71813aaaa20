// Package github provides the GitHub collectors: the repositories visible to
// the token and the deploy keys of each repository.
package github

import (
	"context"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v66/github"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

const perPage = 100

// Collectors builds the GitHub collector set.
type Collectors struct {
	client *gh.Client

	// org, when set, lists the organisation's repositories instead of the
	// repositories granted to an app installation.
	org string
}

// NewCollectors returns Collectors authenticating with token. httpClient may
// be nil.
func NewCollectors(httpClient *http.Client, token, org string) *Collectors {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Collectors{client: client, org: org}
}

// All returns every GitHub collector.
func (c *Collectors) All() []collect.Collector {
	repoScope := func(_ cache.Scope, r models.GitHubRepository) cache.Scope {
		return cache.Scope(naming.GitHubRepository(r.Owner, r.Name))
	}
	return []collect.Collector{
		collect.Global(models.KeyGitHubRepos, c.listRepos),
		collect.PerItem(models.KeyGitHubDeployKeys, models.KeyGitHubRepos, repoScope, c.listDeployKeys),
	}
}

func (c *Collectors) listRepos(ctx context.Context, _ collect.Target) (any, error) {
	repos := []models.GitHubRepository{}
	opts := gh.ListOptions{PerPage: perPage}
	for {
		var (
			page []*gh.Repository
			resp *gh.Response
			err  error
		)
		if c.org != "" {
			page, resp, err = c.client.Repositories.ListByOrg(ctx, c.org, &gh.RepositoryListByOrgOptions{ListOptions: opts})
		} else {
			var list *gh.ListRepositories
			list, resp, err = c.client.Apps.ListRepos(ctx, &opts)
			if list != nil {
				page = list.Repositories
			}
		}
		if err != nil {
			return nil, fmt.Errorf("list repositories: %w", err)
		}
		for _, r := range page {
			repos = append(repos, models.GitHubRepository{
				Owner:    r.GetOwner().GetLogin(),
				Name:     r.GetName(),
				FullName: r.GetFullName(),
				Private:  r.GetPrivate(),
				Archived: r.GetArchived(),
			})
		}
		if resp.NextPage == 0 {
			return repos, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Collectors) listDeployKeys(ctx context.Context, _ collect.Target, r models.GitHubRepository) (any, error) {
	keys := []models.GitHubDeployKey{}
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.client.Repositories.ListKeys(ctx, r.Owner, r.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("list deploy keys of %s/%s: %w", r.Owner, r.Name, err)
		}
		for _, k := range page {
			keys = append(keys, models.GitHubDeployKey{
				ID:       k.GetID(),
				Title:    k.GetTitle(),
				ReadOnly: k.GetReadOnly(),
				Verified: k.GetVerified(),
			})
		}
		if resp.NextPage == 0 {
			return keys, nil
		}
		opts.Page = resp.NextPage
	}
}
