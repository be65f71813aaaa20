package models

// Records written to the cache by the GCP collectors.

// GCPProject is projects:get[global].
type GCPProject struct {
	ProjectID             string `json:"project_id"`
	DefaultServiceAccount string `json:"default_service_account"`
}

// GCPServiceAccount is a service account attached to an instance.
type GCPServiceAccount struct {
	Email  string   `json:"email"`
	Scopes []string `json:"scopes,omitempty"`
}

// GCPAccessConfig is an external access configuration of a network interface.
// NatIP is the ephemeral or static external address.
type GCPAccessConfig struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	NatIP string `json:"nat_ip,omitempty"`
}

// GCPNetworkInterface is one NIC of an instance.
type GCPNetworkInterface struct {
	Name          string            `json:"name"`
	Network       string            `json:"network"`
	AccessConfigs []GCPAccessConfig `json:"access_configs,omitempty"`
}

// GCPInstance is one element of compute:list[<zone>].
type GCPInstance struct {
	Name              string                `json:"name"`
	Zone              string                `json:"zone"`
	Status            string                `json:"status"`
	ServiceAccounts   []GCPServiceAccount   `json:"service_accounts,omitempty"`
	NetworkInterfaces []GCPNetworkInterface `json:"network_interfaces,omitempty"`
}
