package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/store"

	"github.com/pgvector/pgvector-go"
)

const nodeChunk = 250

const upsertNodeSQL = `
INSERT INTO concept_nodes (noun_id, embedding, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (noun_id) DO UPDATE SET
	embedding = EXCLUDED.embedding,
	updated_at = EXCLUDED.updated_at`

// UpsertNodes persists a batch of concept nodes. Each chunk is written in its
// own transaction so a failure mid-batch never leaves a half-written chunk.
func (s *GraphDBStore) UpsertNodes(ctx context.Context, nodes []common.ConceptNode) error {
	if len(nodes) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	return store.ChunkRange(len(nodes), nodeChunk, func(start, end int) error {
		part := nodes[start:end]
		logger.Debug("[Store][UpsertNodes] Saving chunk", "nodes", len(part))

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for _, n := range part {
			if n.NounID == "" {
				return fmt.Errorf("concept node noun_id is empty")
			}
			updatedAt := n.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = time.Now().UTC()
			}
			_, err := tx.Exec(ctx, upsertNodeSQL,
				n.NounID, pgvector.NewVector(n.Embedding), updatedAt)
			if err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})
}

const nearestNeighborsSQL = `
SELECT noun_id, 1 - (embedding <=> $1) AS cosine
FROM concept_nodes
WHERE noun_id <> $2
ORDER BY embedding <=> $1
LIMIT $3`

// NearestNeighbors returns the top-k stored nodes by cosine similarity to the
// given embedding, excluding the querying node itself.
func (s *GraphDBStore) NearestNeighbors(
	ctx context.Context,
	nounID string,
	embedding []float32,
	k int,
) ([]store.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, nearestNeighborsSQL,
		pgvector.NewVector(embedding), nounID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	neighbors := make([]store.Neighbor, 0, k)
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.NounID, &n.Cosine); err != nil {
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}
