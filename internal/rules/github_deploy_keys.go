package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// GitHubDeployKeyWriteAccessRule flags deploy keys that can push to the
// repository they are installed on.
type GitHubDeployKeyWriteAccessRule struct{}

func (r GitHubDeployKeyWriteAccessRule) ID() string { return "GITHUB_DEPLOY_KEY_WRITE_ACCESS" }

func (r GitHubDeployKeyWriteAccessRule) Metadata() Metadata {
	return Metadata{
		ID:          r.ID(),
		Title:       "Deploy Key With Write Access",
		Category:    "Repositories",
		Domain:      "Source Control",
		Severity:    models.SeverityMedium,
		Description: "Ensures repository deploy keys are read-only.",
		MoreInfo: "A leaked deploy key with write access lets its holder push code " +
			"to the repository without any user account.",
		Link:              "https://docs.github.com/en/authentication/connecting-to-github-with-ssh/managing-deploy-keys",
		RecommendedAction: "Recreate the deploy key without write access unless the automation must push.",
		APIs:              []cache.Key{models.KeyGitHubRepos, models.KeyGitHubDeployKeys},
	}
}

func (r GitHubDeployKeyWriteAccessRule) Evaluate(rctx *RuleContext) error {
	l, ok := global(rctx, models.KeyGitHubRepos, "repositories", false)
	if !ok {
		return nil
	}
	if l.State == Empty {
		pass(rctx, "No repositories found", regionGlobal, "")
		return nil
	}
	repos, ok := decode[models.GitHubRepository](rctx, l, regionGlobal, "repositories")
	if !ok {
		return nil
	}
	for _, repo := range repos {
		if repo.Archived {
			continue
		}
		full := naming.GitHubRepository(repo.Owner, repo.Name)
		kl := rctx.Lookup(models.KeyGitHubDeployKeys.At(cache.Scope(full)))
		switch kl.State {
		case Absent:
			continue
		case Failed:
			rctx.AddError(fmt.Sprintf("Unable to query deploy keys for %s: %s", full, kl.Entry.ErrorMessage()), regionGlobal, kl.Err())
			continue
		case Empty:
			pass(rctx, fmt.Sprintf("Repository %s has no deploy keys", full), regionGlobal, full)
			continue
		}
		keys, ok := decode[models.GitHubDeployKey](rctx, kl, regionGlobal, "deploy keys")
		if !ok {
			continue
		}
		for _, k := range keys {
			resource := naming.GitHubDeployKey(repo.Owner, repo.Name, k.ID)
			if k.ReadOnly {
				pass(rctx, fmt.Sprintf("Deploy key %q is read-only", k.Title), regionGlobal, resource)
				continue
			}
			fail(rctx, fmt.Sprintf("Deploy key %q has write access to %s", k.Title, full), regionGlobal, resource)
		}
	}
	return nil
}
