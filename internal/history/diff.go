package history

import (
	"context"
	"errors"

	"github.com/pankaj-dahiya-devops/posture/internal/models"
)

// Diff lists the failing findings that appeared or disappeared between two
// scans. Findings are matched by their deterministic ID.
type Diff struct {
	Base     string           `json:"base,omitempty"`
	Head     string           `json:"head"`
	New      []models.Finding `json:"new"`
	Resolved []models.Finding `json:"resolved"`
}

// DiffPrevious compares scan id with the previous scan of the same provider
// and account. Without a previous scan every failing finding is new.
func (s *Store) DiffPrevious(ctx context.Context, id string) (*Diff, error) {
	head, err := s.Findings(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Diff{Head: id}

	var base []models.Finding
	prev, err := s.Previous(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, err
	default:
		d.Base = prev.ID
		if base, err = s.Findings(ctx, prev.ID); err != nil {
			return nil, err
		}
	}

	d.New, d.Resolved = compare(base, head)
	return d, nil
}

func failing(f models.Finding) bool {
	return f.Status == models.StatusFail || f.Status == models.StatusWarn
}

func compare(base, head []models.Finding) (added, resolved []models.Finding) {
	inBase := make(map[string]bool, len(base))
	for _, f := range base {
		if failing(f) {
			inBase[f.ID] = true
		}
	}
	inHead := make(map[string]bool, len(head))
	for _, f := range head {
		if !failing(f) {
			continue
		}
		inHead[f.ID] = true
		if !inBase[f.ID] {
			added = append(added, f)
		}
	}
	for _, f := range base {
		if failing(f) && !inHead[f.ID] {
			resolved = append(resolved, f)
		}
	}
	return added, resolved
}
