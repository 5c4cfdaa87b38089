package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/platformbuilds/compara-core/internal/models"
)

// canonicalKey is the normalized request identity that gets digested.
// encoding/json marshals map keys in lexicographic order, which together
// with the sorted value lists makes the serialization order-independent.
type canonicalKey struct {
	DatasetID     string              `json:"datasetId"`
	Filters       map[string][]string `json:"filters"`
	Language      string              `json:"language"`
	PromptVersion string              `json:"promptVersion"`
}

// Fingerprint derives the stable cache key for a request. Two logically
// equivalent inputs (same filter values in any key or element order) produce
// the same fingerprint; any change to the dataset ID, a filter value, the
// language, or the prompt version produces a different one.
func Fingerprint(datasetID string, filters models.DashboardFilters, cctx models.CacheContext) string {
	cctx = normalizeContext(cctx)

	normalized := make(map[string][]string, len(filters.Categorical))
	for field, values := range filters.Categorical {
		// An empty value list is no constraint, same as an absent field.
		if len(values) == 0 {
			continue
		}
		sorted := make([]string, len(values))
		copy(sorted, values)
		sort.Strings(sorted)
		normalized[field] = sorted
	}

	payload, _ := json.Marshal(canonicalKey{
		DatasetID:     datasetID,
		Filters:       normalized,
		Language:      cctx.Language,
		PromptVersion: cctx.PromptVersion,
	})
	hash := sha256.Sum256(payload)
	return fmt.Sprintf("%x", hash)
}
