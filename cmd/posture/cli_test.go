package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
	"github.com/pankaj-dahiya-devops/posture/internal/providers/aws/common"
	kube "github.com/pankaj-dahiya-devops/posture/internal/providers/kubernetes"
)

// ── AWS mock ──────────────────────────────────────────────────────────────────

type mockAWSProvider struct {
	profileResult *common.ProfileConfig
	profileErr    error
	regionsResult []string
	regionsErr    error
	lastProfile   string
}

func (m *mockAWSProvider) LoadProfile(_ context.Context, profile string) (*common.ProfileConfig, error) {
	m.lastProfile = profile
	return m.profileResult, m.profileErr
}

func (m *mockAWSProvider) GetActiveRegions(_ context.Context, _ *common.ProfileConfig) ([]string, error) {
	return m.regionsResult, m.regionsErr
}

func (m *mockAWSProvider) ConfigForRegion(_ *common.ProfileConfig, _ string) aws.Config {
	return aws.Config{}
}

func goodMockAWS() *mockAWSProvider {
	return &mockAWSProvider{
		profileResult: &common.ProfileConfig{
			ProfileName: "default",
			AccountID:   "123456789012",
			Region:      "us-east-1",
		},
		regionsResult: []string{"us-east-1", "eu-west-1"},
	}
}

// ── Kubernetes mocks ──────────────────────────────────────────────────────────

type testKubeProvider struct {
	clientset k8sclient.Interface
	info      kube.ClusterInfo
}

func (p *testKubeProvider) ClientsetForContext(_ string) (k8sclient.Interface, kube.ClusterInfo, error) {
	return p.clientset, p.info, nil
}

type failKubeProvider struct{}

func (p *failKubeProvider) ClientsetForContext(_ string) (k8sclient.Interface, kube.ClusterInfo, error) {
	return nil, kube.ClusterInfo{}, errors.New("kubeconfig not found")
}

func goodMockKube() *testKubeProvider {
	return &testKubeProvider{
		clientset: fake.NewSimpleClientset(),
		info:      kube.ClusterInfo{ContextName: "prod-eks"},
	}
}

// ── GitHub fake target ────────────────────────────────────────────────────────

// fakeGitHubTarget serves two repositories: acme/api with one writable deploy
// key and acme/web with none.
func fakeGitHubTarget(_ context.Context, _ *app, f targetFlags) (*target, error) {
	repos := []models.GitHubRepository{
		{Owner: "acme", Name: "api", FullName: "acme/api"},
		{Owner: "acme", Name: "web", FullName: "acme/web"},
	}
	keys := map[string][]models.GitHubDeployKey{
		"acme/api": {{ID: 7, Title: "ci", ReadOnly: false}},
		"acme/web": {},
	}
	repoScope := func(_ cache.Scope, r models.GitHubRepository) cache.Scope {
		return cache.Scope(naming.GitHubRepository(r.Owner, r.Name))
	}
	return &target{
		account: "acme",
		collectors: []collect.Collector{
			collect.Global(models.KeyGitHubRepos, func(context.Context, collect.Target) (any, error) {
				return repos, nil
			}),
			collect.PerItem(models.KeyGitHubDeployKeys, models.KeyGitHubRepos, repoScope,
				func(_ context.Context, _ collect.Target, r models.GitHubRepository) (any, error) {
					return keys[r.FullName], nil
				}),
		},
	}, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newTestApp returns an app whose providers are all fakes and the path of an
// empty config file to pass via --config.
func newTestApp(t *testing.T) (*app, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	kp := goodMockKube()
	a := &app{
		targets:      map[string]targetFunc{"github": fakeGitHubTarget},
		awsProvider:  goodMockAWS(),
		kubeProvider: kp,
		awsProfiles:  func() ([]string, error) { return []string{"default", "prod"}, nil },
		kubeContexts: func() ([]string, string, error) { return []string{"prod-eks"}, "prod-eks", nil },
	}
	return a, cfgPath
}

// runCLI executes the root command built around a and returns stdout.
func runCLI(t *testing.T, a *app, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmdWith(a)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
