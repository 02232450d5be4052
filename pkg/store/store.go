package store

import (
	"context"
	"time"

	"github.com/seferlab/lexgraph/pkg/common"
)

// Neighbor is one nearest-neighbor recall result: a stored concept node and
// its cosine similarity to the query embedding.
type Neighbor struct {
	NounID string
	Cosine float64
}

// Checkpoint is a persisted pipeline snapshot: the serialized state after a
// named stage completed, keyed by run id.
type Checkpoint struct {
	RunID     string
	Stage     string
	State     []byte
	CreatedAt time.Time
}

// GraphStore defines the interface for persisting and querying the concept
// graph. Node and edge writes are idempotent upserts: repeated application
// with the same input yields the same stored state.
type GraphStore interface {
	// UpsertNodes writes concept nodes keyed by noun id inside one
	// transaction, overwriting the embedding on conflict.
	UpsertNodes(ctx context.Context, nodes []common.ConceptNode) error

	// NearestNeighbors returns the top-k stored nodes by cosine similarity
	// to the given embedding, excluding the node identified by nounID.
	NearestNeighbors(ctx context.Context, nounID string, embedding []float32, k int) ([]Neighbor, error)

	// UpsertEdges writes concept edges keyed by (source_id, target_id)
	// inside one transaction, overwriting scores, classification, model id
	// and timestamp on conflict.
	UpsertEdges(ctx context.Context, edges []common.ConceptEdge) error

	// SaveConfidenceAudit appends one audit row per record.
	SaveConfidenceAudit(ctx context.Context, records []common.ConfidenceRecord) error

	// SaveCheckpoint upserts a pipeline checkpoint keyed by (run_id, stage).
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error

	// LoadCheckpoint returns the most recent checkpoint for the run, or nil
	// when the run has none.
	LoadCheckpoint(ctx context.Context, runID string) (*Checkpoint, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error
}

// ChunkRange calls fn with successive [start,end) windows of size chunkSize
// over n items, stopping at the first error.
func ChunkRange(n, chunkSize int, fn func(start, end int) error) error {
	if chunkSize <= 0 {
		chunkSize = n
	}
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}
