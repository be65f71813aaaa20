package models

// AzurePricing is one element of pricings:list[<location>]: the Microsoft
// Defender for Cloud plan of one resource type. Tier is "Standard" when the
// plan is enabled and "Free" otherwise.
type AzurePricing struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tier    string `json:"tier"`
	SubPlan string `json:"sub_plan,omitempty"`
}
