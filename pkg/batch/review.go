package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seferlab/lexgraph/pkg/common"
)

// reviewRecord is one line of the review artifact written on the abort path.
type reviewRecord struct {
	Noun   common.Noun `json:"noun"`
	Status string      `json:"status"`
}

const reviewStatusPending = "pending_review"

// WriteReviewArtifact writes one JSONL record per noun, each tagged
// "pending_review", for operator triage after a batch abort. Returns the path
// of the written artifact.
func WriteReviewArtifact(dir string, nouns []common.Noun) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create review directory: %w", err)
	}

	batchID, err := ComputeBatchID(nouns)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("review_%s.jsonl", batchID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create review artifact: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, n := range nouns {
		if err := enc.Encode(reviewRecord{Noun: n, Status: reviewStatusPending}); err != nil {
			return "", fmt.Errorf("failed to write review record: %w", err)
		}
	}

	return path, nil
}
