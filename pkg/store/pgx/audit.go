package pgx

import (
	"context"

	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"
)

const insertAuditSQL = `
INSERT INTO confidence_audit (run_id, noun_id, gematria_confidence, ai_confidence, gematria_threshold, ai_threshold, passed, abort_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// SaveConfidenceAudit appends one audit row per validated noun. Rows are
// append-only: every validation run leaves a trace, passed or not.
func (s *GraphDBStore) SaveConfidenceAudit(ctx context.Context, records []common.ConfidenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	logger.Debug("[Store][SaveConfidenceAudit] Saving records", "count", len(records))

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx, insertAuditSQL,
			r.RunID, r.NounID, r.GematriaConfidence, r.AIConfidence,
			r.GematriaThreshold, r.AIThreshold, r.Passed, r.AbortReason)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
