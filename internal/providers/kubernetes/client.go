package kubernetes

import k8sclient "k8s.io/client-go/kubernetes"

// KubeClientProvider creates clientsets for named kubeconfig contexts, so
// tests can inject fake clientsets without touching the filesystem.
type KubeClientProvider interface {
	// ClientsetForContext returns a clientset for contextName. An empty
	// name selects the kubeconfig's current context.
	ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error)
}

// DefaultKubeClientProvider loads kubeconfig from $KUBECONFIG or
// ~/.kube/config.
type DefaultKubeClientProvider struct {
	path string
}

// NewDefaultKubeClientProvider returns a provider backed by the system
// kubeconfig.
func NewDefaultKubeClientProvider() *DefaultKubeClientProvider {
	return &DefaultKubeClientProvider{path: resolveKubeconfigPath()}
}

// ClientsetForContext implements KubeClientProvider.
func (p *DefaultKubeClientProvider) ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error) {
	return LoadClientset(p.path, contextName)
}

// Contexts lists the kubeconfig contexts and the current one.
func (p *DefaultKubeClientProvider) Contexts() (names []string, current string, err error) {
	return ListContexts(p.path)
}
