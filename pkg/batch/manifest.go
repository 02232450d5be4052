package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/seferlab/lexgraph/pkg/common"
)

// Manifest records the content hashes of a processed batch: one hash per
// input noun and one per result, both in canonical (sorted) order, together
// with the batch id and the admission policy that produced it.
type Manifest struct {
	BatchID      string   `json:"batch_id"`
	InputHashes  []string `json:"input_hashes"`
	ResultHashes []string `json:"result_hashes"`
	Policy       Config   `json:"policy"`
}

// batchIDLength is the hex prefix length of the full SHA-256 batch hash,
// kept short for log and operator readability.
const batchIDLength = 16

// SortCanonical returns a copy of the nouns in canonical order: by surface
// text, falling back to the canonical serialized form for ties. Processing in
// canonical order makes the batch id and manifest independent of input order.
func SortCanonical(nouns []common.Noun) []common.Noun {
	sorted := make([]common.Noun, len(nouns))
	copy(sorted, nouns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Surface != sorted[j].Surface {
			return sorted[i].Surface < sorted[j].Surface
		}
		return contentHash(sorted[i]) < contentHash(sorted[j])
	})
	return sorted
}

// ComputeBatchID derives the content-addressed batch identifier: the SHA-256
// hash of the canonical serialization of the sorted noun list, truncated to a
// 16-character hex prefix. Identical noun sets in any order produce the same
// identifier.
func ComputeBatchID(nouns []common.Noun) (string, error) {
	sorted := SortCanonical(nouns)
	serialized, err := json.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("failed to serialize batch: %w", err)
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])[:batchIDLength], nil
}

func contentHash(v any) string {
	serialized, err := json.Marshal(v)
	if err != nil {
		// Nouns and results are plain data; marshaling them cannot fail at
		// runtime, but a stable sentinel keeps the hash list total.
		return "unhashable"
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

func buildManifest(batchID string, cfg Config, nouns []common.Noun, results []Result) Manifest {
	manifest := Manifest{
		BatchID:      batchID,
		InputHashes:  make([]string, 0, len(nouns)),
		ResultHashes: make([]string, 0, len(results)),
		Policy:       cfg,
	}
	for _, n := range nouns {
		manifest.InputHashes = append(manifest.InputHashes, contentHash(n))
	}
	for _, r := range results {
		manifest.ResultHashes = append(manifest.ResultHashes, contentHash(r))
	}
	return manifest
}
