package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// Client-side rate limits for scan clientsets. A scan issues a burst of list
// calls per context and the client-go defaults (5 QPS) would serialise them.
const (
	clientQPS   = 20
	clientBurst = 40
	userAgent   = "posture"
)

// resolveKubeconfigPath returns $KUBECONFIG when set, else ~/.kube/config.
func resolveKubeconfigPath() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}

func loadRaw(kubeconfigPath string) (clientcmdapi.Config, error) {
	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	raw, err := rules.Load()
	if err != nil {
		return clientcmdapi.Config{}, fmt.Errorf("load kubeconfig %q: %w", kubeconfigPath, err)
	}
	return *raw, nil
}

// ListContexts returns the sorted context names of the kubeconfig at path
// and its current context.
func ListContexts(kubeconfigPath string) ([]string, string, error) {
	raw, err := loadRaw(kubeconfigPath)
	if err != nil {
		return nil, "", err
	}
	names := make([]string, 0, len(raw.Contexts))
	for name := range raw.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, raw.CurrentContext, nil
}

// LoadClientset builds a clientset for contextName (empty selects the
// current context). Unknown contexts are rejected before any REST config is
// built so the error names the context rather than a missing cluster.
func LoadClientset(kubeconfigPath, contextName string) (k8sclient.Interface, ClusterInfo, error) {
	raw, err := loadRaw(kubeconfigPath)
	if err != nil {
		return nil, ClusterInfo{}, err
	}

	name := contextName
	if name == "" {
		name = raw.CurrentContext
	}
	if name == "" {
		return nil, ClusterInfo{}, fmt.Errorf("kubeconfig %q has no current context", kubeconfigPath)
	}
	kctx, ok := raw.Contexts[name]
	if !ok {
		return nil, ClusterInfo{}, fmt.Errorf("context %q not found in kubeconfig %q", name, kubeconfigPath)
	}
	info := ClusterInfo{ContextName: name}
	if cluster, ok := raw.Clusters[kctx.Cluster]; ok {
		info.Server = cluster.Server
	}

	restCfg, err := clientcmd.NewNonInteractiveClientConfig(raw, name, &clientcmd.ConfigOverrides{}, nil).ClientConfig()
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build REST config for context %q: %w", name, err)
	}
	restCfg.QPS = clientQPS
	restCfg.Burst = clientBurst
	restCfg.UserAgent = userAgent

	clientset, err := k8sclient.NewForConfig(restCfg)
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build clientset for context %q: %w", name, err)
	}
	return clientset, info, nil
}
