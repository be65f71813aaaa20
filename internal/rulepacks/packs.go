// Package rulepacks maps provider names to their rule packs.
package rulepacks

import (
	"fmt"
	"sort"

	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks/aws"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks/azure"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks/gcp"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks/github"
	"github.com/pankaj-dahiya-devops/posture/internal/rulepacks/kubernetes"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

var packs = map[string]func() []rules.Rule{
	"aws":        aws.New,
	"azure":      azure.New,
	"gcp":        gcp.New,
	"github":     github.New,
	"kubernetes": kubernetes.New,
}

// Providers returns the provider names with a rule pack, sorted.
func Providers() []string {
	out := make([]string, 0, len(packs))
	for name := range packs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registry returns a registry holding provider's pack followed by extra
// rules, e.g. Rego rules loaded from disk.
func Registry(provider string, extra ...rules.Rule) (*rules.DefaultRuleRegistry, error) {
	newPack, ok := packs[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	reg := rules.NewDefaultRuleRegistry()
	for _, r := range newPack() {
		reg.Register(r)
	}
	for _, r := range extra {
		if _, dup := reg.Get(r.ID()); dup {
			return nil, fmt.Errorf("rule %s is already registered for %s", r.ID(), provider)
		}
		reg.Register(r)
	}
	return reg, nil
}
