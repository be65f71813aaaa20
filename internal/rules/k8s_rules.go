package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/models"
	"github.com/pankaj-dahiya-devops/posture/internal/naming"
)

// Kubernetes rules use the kubeconfig context as their region: the scan's
// Settings.Regions holds the audited contexts.

// ── K8S_NAMESPACE_WITHOUT_LIMITS ─────────────────────────────────────────────

// K8SNamespaceWithoutLimitsRule fires for each namespace that has no LimitRange
// object, meaning pods can consume unbounded CPU and memory resources.
type K8SNamespaceWithoutLimitsRule struct{}

func (r K8SNamespaceWithoutLimitsRule) ID() string { return "K8S_NAMESPACE_WITHOUT_LIMITS" }

func (r K8SNamespaceWithoutLimitsRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Kubernetes Namespace Without LimitRange",
		Category:          "Namespaces",
		Domain:            "Kubernetes",
		Severity:          models.SeverityMedium,
		Description:       "Ensures every namespace defines default resource limits through a LimitRange.",
		Link:              "https://kubernetes.io/docs/concepts/policy/limit-range/",
		RecommendedAction: "Add a LimitRange to the namespace to enforce default resource limits for pods.",
		APIs:              []cache.Key{models.KeyK8sNamespaces, models.KeyK8sLimitRanges},
	}
}

func (r K8SNamespaceWithoutLimitsRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyK8sNamespaces, "namespaces", func(kctx string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No namespaces found", kctx, "")
			return
		}
		namespaces, ok := decode[models.KubernetesNamespace](rctx, l, kctx, "namespaces")
		if !ok {
			return
		}
		for _, ns := range namespaces {
			resource := naming.Kubernetes(kctx, "", "namespace", ns.Name)
			lr := rctx.Lookup(models.KeyK8sLimitRanges.At(cache.JoinScope(kctx, ns.Name)))
			switch lr.State {
			case Absent:
				continue
			case Failed:
				rctx.AddError(fmt.Sprintf("Unable to query limit ranges in namespace %s: %s", ns.Name, lr.Entry.ErrorMessage()), kctx, lr.Err())
			case Empty:
				fail(rctx, fmt.Sprintf("Namespace %q has no LimitRange; pods may consume unbounded CPU and memory", ns.Name), kctx, resource)
			default:
				pass(rctx, fmt.Sprintf("Namespace %q has a LimitRange", ns.Name), kctx, resource)
			}
		}
	})
	return nil
}

// ── K8S_PRIVILEGED_CONTAINER ─────────────────────────────────────────────────

// K8SPrivilegedContainerRule fires for each container running with
// securityContext.privileged == true.
type K8SPrivilegedContainerRule struct{}

func (r K8SPrivilegedContainerRule) ID() string { return "K8S_PRIVILEGED_CONTAINER" }

func (r K8SPrivilegedContainerRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Kubernetes Privileged Container Detected",
		Category:          "Workloads",
		Domain:            "Kubernetes",
		Severity:          models.SeverityCritical,
		Description:       "Ensures no container runs in privileged mode.",
		MoreInfo:          "A privileged container has all host capabilities and can escape to the node.",
		Link:              "https://kubernetes.io/docs/concepts/security/pod-security-standards/",
		RecommendedAction: "Remove the privileged flag from the container security context.",
		APIs:              []cache.Key{models.KeyK8sPods},
		Compliance: map[string]string{
			"cis-k8s": "5.2.2 Minimize the admission of privileged containers",
		},
	}
}

func (r K8SPrivilegedContainerRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyK8sPods, "pods", func(kctx string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No pods found", kctx, "")
			return
		}
		pods, ok := decode[models.KubernetesPod](rctx, l, kctx, "pods")
		if !ok {
			return
		}
		flagged := 0
		for _, pod := range pods {
			for _, c := range pod.Containers {
				if !c.Privileged {
					continue
				}
				flagged++
				fail(rctx,
					fmt.Sprintf("Container %q in pod %s/%s runs privileged", c.Name, pod.Namespace, pod.Name),
					kctx,
					naming.Kubernetes(kctx, pod.Namespace, "pod", pod.Name))
			}
		}
		if flagged == 0 {
			pass(rctx, fmt.Sprintf("No privileged containers among %d pods", len(pods)), kctx, "")
		}
	})
	return nil
}

// ── K8S_SERVICE_PUBLIC_LOADBALANCER ──────────────────────────────────────────

// internalLBAnnotations mark a LoadBalancer Service as internal on the major
// cloud providers.
var internalLBAnnotations = []string{
	"service.beta.kubernetes.io/aws-load-balancer-internal",
	"networking.gke.io/load-balancer-type",
	"service.beta.kubernetes.io/azure-load-balancer-internal",
}

// K8SServicePublicLoadBalancerRule fires for each Service of type LoadBalancer
// without an internal load-balancer annotation.
type K8SServicePublicLoadBalancerRule struct{}

func (r K8SServicePublicLoadBalancerRule) ID() string { return "K8S_SERVICE_PUBLIC_LOADBALANCER" }

func (r K8SServicePublicLoadBalancerRule) Metadata() Metadata {
	return Metadata{
		ID:                r.ID(),
		Title:             "Kubernetes Service Exposes Public Load Balancer",
		Category:          "Networking",
		Domain:            "Kubernetes",
		Severity:          models.SeverityHigh,
		Description:       "Ensures LoadBalancer services are internal unless explicitly intended to be public.",
		Link:              "https://kubernetes.io/docs/concepts/services-networking/service/#internal-load-balancer",
		RecommendedAction: "Add the provider's internal load-balancer annotation to restrict the service to private traffic.",
		APIs:              []cache.Key{models.KeyK8sServices},
	}
}

func (r K8SServicePublicLoadBalancerRule) Evaluate(rctx *RuleContext) error {
	forEachRegion(rctx, models.KeyK8sServices, "services", func(kctx string, l Lookup) {
		if l.State == Empty {
			pass(rctx, "No services found", kctx, "")
			return
		}
		services, ok := decode[models.KubernetesService](rctx, l, kctx, "services")
		if !ok {
			return
		}
		for _, svc := range services {
			if svc.Type != "LoadBalancer" {
				continue
			}
			resource := naming.Kubernetes(kctx, svc.Namespace, "service", svc.Name)
			if isInternalLB(svc.Annotations) {
				pass(rctx, fmt.Sprintf("Service %q uses an internal load balancer", svc.Name), kctx, resource)
				continue
			}
			fail(rctx, fmt.Sprintf("Service %q (namespace %q) uses type LoadBalancer without an internal annotation, exposing it publicly", svc.Name, svc.Namespace), kctx, resource)
		}
	})
	return nil
}

func isInternalLB(annotations map[string]string) bool {
	for _, key := range internalLBAnnotations {
		switch annotations[key] {
		case "true", "Internal", "internal":
			return true
		}
	}
	return false
}
