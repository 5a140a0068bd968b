package infer

import (
	"sort"
	"strings"

	"github.com/nyc-collisions/internal/geo"
)

// Inference is exactly one resolved region per matched record key. The
// merge step assumes a one-to-one join key, so uniqueness here is a hard
// guarantee.
type Inference struct {
	ID     string
	Region string
}

// Resolve collapses raw match results to one inference per id. Region
// names are trimmed before comparison and storage; ties from overlapping
// polygons are broken deterministically by keeping the lexicographically
// first region. The second return value counts the collapsed extra rows
// so polygon-overlap anomalies stay visible to operators.
func Resolve(matches []geo.Match) ([]Inference, int) {
	best := make(map[string]string, len(matches))
	for _, m := range matches {
		region := strings.TrimSpace(m.Region)
		if cur, ok := best[m.ID]; !ok || region < cur {
			best[m.ID] = region
		}
	}

	duplicates := len(matches) - len(best)

	out := make([]Inference, 0, len(best))
	for id, region := range best {
		out = append(out, Inference{ID: id, Region: region})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, duplicates
}
