package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/seferlab/lexgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const upsertCheckpointSQL = `
INSERT INTO pipeline_checkpoints (run_id, stage, state, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id, stage) DO UPDATE SET
	state = EXCLUDED.state,
	created_at = EXCLUDED.created_at`

func (s *GraphDBStore) SaveCheckpoint(ctx context.Context, cp store.Checkpoint) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(ctx, upsertCheckpointSQL,
		cp.RunID, cp.Stage, cp.State, createdAt)
	return err
}

const loadCheckpointSQL = `
SELECT run_id, stage, state, created_at
FROM pipeline_checkpoints
WHERE run_id = $1
ORDER BY created_at DESC
LIMIT 1`

// LoadCheckpoint returns the most recent checkpoint for the run, or nil when
// the run has none.
func (s *GraphDBStore) LoadCheckpoint(ctx context.Context, runID string) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	err := s.conn.QueryRow(ctx, loadCheckpointSQL, runID).
		Scan(&cp.RunID, &cp.Stage, &cp.State, &cp.CreatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
