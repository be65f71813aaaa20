package models

// Records written to the cache by the GitHub collectors.

// GitHubRepository is one element of apps:listRepos[global].
type GitHubRepository struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	Archived bool   `json:"archived"`
}

// GitHubDeployKey is one element of repos:listDeployKeys[<owner>/<repo>].
type GitHubDeployKey struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ReadOnly bool   `json:"read_only"`
	Verified bool   `json:"verified"`
}
