package models

// Records written to the cache by the Kubernetes collectors.

// KubernetesNamespace is one element of core:listNamespaces[<context>].
type KubernetesNamespace struct {
	Name string `json:"name"`
}

// KubernetesLimitRange is one element of
// core:listLimitRanges[<context>/<namespace>].
type KubernetesLimitRange struct {
	Name string `json:"name"`
}

// KubernetesContainer holds per-container security attributes.
type KubernetesContainer struct {
	Name string `json:"name"`

	// Privileged is true when securityContext.privileged == true.
	Privileged bool `json:"privileged"`

	HasCPURequest    bool `json:"has_cpu_request"`
	HasMemoryRequest bool `json:"has_memory_request"`
}

// KubernetesPod is one element of core:listPods[<context>].
type KubernetesPod struct {
	Name       string                `json:"name"`
	Namespace  string                `json:"namespace"`
	Containers []KubernetesContainer `json:"containers"`
}

// KubernetesService is one element of core:listServices[<context>].
type KubernetesService struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	Type        string            `json:"type"`
	Annotations map[string]string `json:"annotations,omitempty"`
}
