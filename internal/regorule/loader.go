package regorule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/pankaj-dahiya-devops/posture/internal/cache"
	"github.com/pankaj-dahiya-devops/posture/internal/rules"
)

// metadataDoc is the Rego metadata object.
type metadataDoc struct {
	ID                string            `json:"id"`
	Provider          string            `json:"provider"`
	Title             string            `json:"title"`
	Category          string            `json:"category"`
	Domain            string            `json:"domain"`
	Severity          string            `json:"severity"`
	Description       string            `json:"description"`
	MoreInfo          string            `json:"more_info"`
	Link              string            `json:"link"`
	RecommendedAction string            `json:"recommended_action"`
	APIs              []string          `json:"apis"`
	RealtimeTriggers  []string          `json:"realtime_triggers"`
	Compliance        map[string]string `json:"compliance"`
}

// LoadDir compiles every .rego file of dir, sorted by file name.
func LoadDir(ctx context.Context, dir string) ([]*Rule, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("list rego rules in %s: %w", dir, err)
	}
	sort.Strings(matches)

	out := make([]*Rule, 0, len(matches))
	seen := make(map[string]string)
	for _, path := range matches {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		r, err := Compile(ctx, path, string(src))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[r.ID()]; dup {
			return nil, fmt.Errorf("rule %s declared in both %s and %s", r.ID(), prev, path)
		}
		seen[r.ID()] = path
		out = append(out, r)
	}
	return out, nil
}

// ForProvider returns the rules of provider as rules.Rule values.
func ForProvider(all []*Rule, provider string) []rules.Rule {
	var out []rules.Rule
	for _, r := range all {
		if r.provider == provider {
			out = append(out, r)
		}
	}
	return out
}

// Compile parses one Rego module, reads its metadata and prepares the
// findings query.
func Compile(ctx context.Context, file, src string) (*Rule, error) {
	mod, err := ast.ParseModule(file, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	pkg := mod.Package.Path.String()

	meta, provider, err := readMetadata(ctx, file, src, pkg)
	if err != nil {
		return nil, err
	}

	query, err := rego.New(
		rego.Module(file, src),
		rego.Query(pkg+".findings"),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", file, err)
	}

	return &Rule{file: file, provider: provider, meta: meta, query: query}, nil
}

func readMetadata(ctx context.Context, file, src, pkg string) (rules.Metadata, string, error) {
	rs, err := rego.New(
		rego.Module(file, src),
		rego.Query(pkg+".metadata"),
	).Eval(ctx)
	if err != nil {
		return rules.Metadata{}, "", fmt.Errorf("evaluate metadata of %s: %w", file, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return rules.Metadata{}, "", fmt.Errorf("%s: metadata is not defined", file)
	}

	var doc metadataDoc
	if err := roundTrip(rs[0].Expressions[0].Value, &doc); err != nil {
		return rules.Metadata{}, "", fmt.Errorf("%s: decode metadata: %w", file, err)
	}

	var problems []string
	if doc.ID == "" {
		problems = append(problems, "id is required")
	}
	if doc.Provider == "" {
		problems = append(problems, "provider is required")
	}
	if doc.Title == "" {
		problems = append(problems, "title is required")
	}
	if len(doc.APIs) == 0 {
		problems = append(problems, "apis must list at least one cache key")
	}
	sev, err := normaliseSeverity(doc.Severity)
	if err != nil {
		problems = append(problems, err.Error())
	}
	keys := make([]cache.Key, 0, len(doc.APIs))
	for _, s := range doc.APIs {
		k, err := cache.ParseKey(s)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		keys = append(keys, k)
	}
	if len(problems) > 0 {
		return rules.Metadata{}, "", fmt.Errorf("%s: invalid metadata: %s", file, strings.Join(problems, "; "))
	}

	category, domain := doc.Category, doc.Domain
	if category == "" {
		category = "Custom"
	}
	if domain == "" {
		domain = "Custom Rules"
	}
	return rules.Metadata{
		ID:                doc.ID,
		Title:             doc.Title,
		Category:          category,
		Domain:            domain,
		Severity:          sev,
		Description:       doc.Description,
		MoreInfo:          doc.MoreInfo,
		Link:              doc.Link,
		RecommendedAction: doc.RecommendedAction,
		APIs:              keys,
		RealtimeTriggers:  doc.RealtimeTriggers,
		Compliance:        doc.Compliance,
	}, doc.Provider, nil
}
