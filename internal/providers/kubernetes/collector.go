// Package kubernetes provides the Kubernetes collectors. A scan's regions
// are kubeconfig context names; each collector issues one list call per
// context (or per namespace of a context).
package kubernetes

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/collect"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// Collectors builds the Kubernetes collector set. Clientsets are created on
// first use, once per context.
type Collectors struct {
	provider KubeClientProvider

	mu      sync.Mutex
	clients map[string]k8sclient.Interface
}

// NewCollectors returns Collectors obtaining clientsets from provider.
func NewCollectors(provider KubeClientProvider) *Collectors {
	return &Collectors{provider: provider, clients: make(map[string]k8sclient.Interface)}
}

func (c *Collectors) clientset(kctx string) (k8sclient.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cs, ok := c.clients[kctx]; ok {
		return cs, nil
	}
	cs, _, err := c.provider.ClientsetForContext(kctx)
	if err != nil {
		return nil, err
	}
	c.clients[kctx] = cs
	return cs, nil
}

// All returns every Kubernetes collector.
func (c *Collectors) All() []collect.Collector {
	nsScope := func(parent cache.Scope, ns models.KubernetesNamespace) cache.Scope {
		return cache.JoinScope(string(parent), ns.Name)
	}
	return []collect.Collector{
		collect.Regional(models.KeyK8sNamespaces, c.listNamespaces),
		collect.PerItem(models.KeyK8sLimitRanges, models.KeyK8sNamespaces, nsScope, c.listLimitRanges),
		collect.Regional(models.KeyK8sPods, c.listPods),
		collect.Regional(models.KeyK8sServices, c.listServices),
	}
}

func (c *Collectors) listNamespaces(ctx context.Context, t collect.Target) (any, error) {
	cs, err := c.clientset(t.Region)
	if err != nil {
		return nil, err
	}
	list, err := cs.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces in %s: %w", t.Region, err)
	}
	out := make([]models.KubernetesNamespace, 0, len(list.Items))
	for _, ns := range list.Items {
		out = append(out, models.KubernetesNamespace{Name: ns.Name})
	}
	return out, nil
}

func (c *Collectors) listLimitRanges(ctx context.Context, t collect.Target, ns models.KubernetesNamespace) (any, error) {
	cs, err := c.clientset(t.Region)
	if err != nil {
		return nil, err
	}
	list, err := cs.CoreV1().LimitRanges(ns.Name).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list limitranges of namespace %q in %s: %w", ns.Name, t.Region, err)
	}
	out := make([]models.KubernetesLimitRange, 0, len(list.Items))
	for _, lr := range list.Items {
		out = append(out, models.KubernetesLimitRange{Name: lr.Name})
	}
	return out, nil
}

// listPods records, per container, the privileged flag and whether non-zero
// CPU and memory requests are set.
func (c *Collectors) listPods(ctx context.Context, t collect.Target) (any, error) {
	cs, err := c.clientset(t.Region)
	if err != nil {
		return nil, err
	}
	list, err := cs.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", t.Region, err)
	}

	pods := make([]models.KubernetesPod, 0, len(list.Items))
	for _, p := range list.Items {
		pod := models.KubernetesPod{Name: p.Name, Namespace: p.Namespace, Containers: []models.KubernetesContainer{}}
		for _, ctr := range p.Spec.Containers {
			privileged := ctr.SecurityContext != nil &&
				ctr.SecurityContext.Privileged != nil &&
				*ctr.SecurityContext.Privileged

			cpuReq, hasCPU := ctr.Resources.Requests[corev1.ResourceCPU]
			memReq, hasMem := ctr.Resources.Requests[corev1.ResourceMemory]

			pod.Containers = append(pod.Containers, models.KubernetesContainer{
				Name:             ctr.Name,
				Privileged:       privileged,
				HasCPURequest:    hasCPU && !cpuReq.IsZero(),
				HasMemoryRequest: hasMem && !memReq.IsZero(),
			})
		}
		pods = append(pods, pod)
	}
	return pods, nil
}

func (c *Collectors) listServices(ctx context.Context, t collect.Target) (any, error) {
	cs, err := c.clientset(t.Region)
	if err != nil {
		return nil, err
	}
	list, err := cs.CoreV1().Services("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list services in %s: %w", t.Region, err)
	}

	services := make([]models.KubernetesService, 0, len(list.Items))
	for _, s := range list.Items {
		var annotations map[string]string
		if len(s.Annotations) > 0 {
			annotations = make(map[string]string, len(s.Annotations))
			for k, v := range s.Annotations {
				annotations[k] = v
			}
		}
		services = append(services, models.KubernetesService{
			Name:        s.Name,
			Namespace:   s.Namespace,
			Type:        string(s.Spec.Type),
			Annotations: annotations,
		})
	}
	return services, nil
}
