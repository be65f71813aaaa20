// Package regions holds the static region and zone catalogues used when a
// scan does not discover them from the provider.
package regions

import "sort"

// GCPZones maps each GCP compute region to its zones.
var GCPZones = map[string][]string{
	"asia-east1":              {"asia-east1-a", "asia-east1-b", "asia-east1-c"},
	"asia-northeast1":         {"asia-northeast1-a", "asia-northeast1-b", "asia-northeast1-c"},
	"asia-south1":             {"asia-south1-a", "asia-south1-b", "asia-south1-c"},
	"asia-southeast1":         {"asia-southeast1-a", "asia-southeast1-b", "asia-southeast1-c"},
	"australia-southeast1":    {"australia-southeast1-a", "australia-southeast1-b", "australia-southeast1-c"},
	"europe-north1":           {"europe-north1-a", "europe-north1-b", "europe-north1-c"},
	"europe-west1":            {"europe-west1-b", "europe-west1-c", "europe-west1-d"},
	"europe-west2":            {"europe-west2-a", "europe-west2-b", "europe-west2-c"},
	"europe-west3":            {"europe-west3-a", "europe-west3-b", "europe-west3-c"},
	"europe-west4":            {"europe-west4-a", "europe-west4-b", "europe-west4-c"},
	"northamerica-northeast1": {"northamerica-northeast1-a", "northamerica-northeast1-b", "northamerica-northeast1-c"},
	"southamerica-east1":      {"southamerica-east1-a", "southamerica-east1-b", "southamerica-east1-c"},
	"us-central1":             {"us-central1-a", "us-central1-b", "us-central1-c", "us-central1-f"},
	"us-east1":                {"us-east1-b", "us-east1-c", "us-east1-d"},
	"us-east4":                {"us-east4-a", "us-east4-b", "us-east4-c"},
	"us-west1":                {"us-west1-a", "us-west1-b", "us-west1-c"},
	"us-west2":                {"us-west2-a", "us-west2-b", "us-west2-c"},
}

// AWSDefault is the region list used when active regions cannot be
// discovered through EC2 DescribeRegions.
var AWSDefault = []string{
	"ap-northeast-1", "ap-northeast-2", "ap-south-1", "ap-southeast-1", "ap-southeast-2",
	"ca-central-1", "eu-central-1", "eu-north-1", "eu-west-1", "eu-west-2", "eu-west-3",
	"sa-east-1", "us-east-1", "us-east-2", "us-west-1", "us-west-2",
}

// GCPRegions returns the GCP regions in sorted order.
func GCPRegions() []string {
	out := make([]string, 0, len(GCPZones))
	for r := range GCPZones {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ZonesFor restricts the GCP catalogue to the given regions. Unknown
// regions map to no zones.
func ZonesFor(regionList []string) map[string][]string {
	out := make(map[string][]string, len(regionList))
	for _, r := range regionList {
		out[r] = GCPZones[r]
	}
	return out
}
