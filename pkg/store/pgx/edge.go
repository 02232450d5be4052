package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/store"
)

const edgeChunk = 500

const upsertEdgeSQL = `
INSERT INTO concept_edges (source_id, target_id, cosine, rerank_score, strength, classification, rerank_model, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (source_id, target_id) DO UPDATE SET
	cosine = EXCLUDED.cosine,
	rerank_score = EXCLUDED.rerank_score,
	strength = EXCLUDED.strength,
	classification = EXCLUDED.classification,
	rerank_model = EXCLUDED.rerank_model,
	updated_at = EXCLUDED.updated_at`

// UpsertEdges persists a batch of concept edges keyed by (source_id,
// target_id). Re-running aggregation for the same pair overwrites the scores
// instead of accumulating duplicate rows.
func (s *GraphDBStore) UpsertEdges(ctx context.Context, edges []common.ConceptEdge) error {
	if len(edges) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	return store.ChunkRange(len(edges), edgeChunk, func(start, end int) error {
		part := edges[start:end]
		logger.Debug("[Store][UpsertEdges] Saving chunk", "edges", len(part))

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for _, e := range part {
			if e.SourceID == "" || e.TargetID == "" {
				return fmt.Errorf("concept edge endpoint is empty: source=%q target=%q", e.SourceID, e.TargetID)
			}
			updatedAt := e.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = time.Now().UTC()
			}
			_, err := tx.Exec(ctx, upsertEdgeSQL,
				e.SourceID, e.TargetID, e.Cosine, e.RerankScore,
				e.Strength, e.Classification, e.RerankModel, updatedAt)
			if err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})
}
