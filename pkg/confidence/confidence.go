package confidence

import (
	"context"
	"fmt"

	"github.com/seferlab/lexgraph/internal/util"
	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"

	"github.com/go-playground/validator"
)

// Thresholds are the inclusive confidence minimums applied by the gate. They
// are read at validation time, not at process start, so operators can tune
// policy between runs without a restart.
type Thresholds struct {
	Gematria float64 `json:"gematria" validate:"gte=0,lte=1"`
	AI       float64 `json:"ai" validate:"gte=0,lte=1"`
}

// ThresholdsFromEnv reads the current thresholds from the environment and
// validates them. Called per run to honor the read-at-call-time contract.
func ThresholdsFromEnv() (Thresholds, error) {
	th := Thresholds{
		Gematria: util.GetEnvFloat("CONFIDENCE_GEMATRIA_MIN", 0.90),
		AI:       util.GetEnvFloat("CONFIDENCE_AI_MIN", 0.95),
	}
	if err := validator.New().Struct(th); err != nil {
		return Thresholds{}, fmt.Errorf("invalid confidence thresholds: %w", err)
	}
	return th, nil
}

// AuditStore persists one confidence audit record per noun per run. The
// records are the recovery path after an abort, so persistence happens for
// every noun regardless of outcome.
type AuditStore interface {
	SaveConfidenceAudit(ctx context.Context, records []common.ConfidenceRecord) error
}

// LowConfidenceNoun describes one noun that failed the gate.
type LowConfidenceNoun struct {
	NounID             string  `json:"noun_id"`
	GematriaConfidence float64 `json:"gematria_confidence"`
	AIConfidence       float64 `json:"ai_confidence"`
	Reason             string  `json:"reason"`
}

// ValidationError is the fatal gate failure. It carries the complete list of
// failing nouns so an operator can reproduce the decision without re-reading
// logs.
type ValidationError struct {
	RunID              string
	LowConfidenceNouns []LowConfidenceNoun
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"confidence validation failed for run %s: %d nouns below threshold",
		e.RunID, len(e.LowConfidenceNouns),
	)
}

// Validator is the hard quality gate between enrichment and graph
// construction. The gate is all-or-nothing: a single failing noun aborts the
// run, because a partially validated graph would corrupt the aggregation
// stage's idempotency.
type Validator struct {
	audit AuditStore
}

// New creates a Validator backed by the given audit store.
func New(audit AuditStore) *Validator {
	return &Validator{audit: audit}
}

// Validate gates every noun on both confidence axes. Comparison is inclusive:
// score >= threshold passes. One audit record per noun is persisted whatever
// the outcome; if any noun fails, a ValidationError carrying all failures is
// returned after the audit write.
func (v *Validator) Validate(
	ctx context.Context,
	nouns []common.Noun,
	runID string,
	thresholds Thresholds,
) ([]common.ConfidenceRecord, error) {
	records := make([]common.ConfidenceRecord, 0, len(nouns))
	var failures []LowConfidenceNoun

	for _, n := range nouns {
		record := common.ConfidenceRecord{
			RunID:              runID,
			NounID:             n.ID,
			GematriaConfidence: n.GematriaConfidence,
			AIConfidence:       n.AIConfidence,
			GematriaThreshold:  thresholds.Gematria,
			AIThreshold:        thresholds.AI,
			Passed:             true,
		}

		reason := failureReason(n, thresholds)
		if reason != "" {
			record.Passed = false
			record.AbortReason = reason
			failures = append(failures, LowConfidenceNoun{
				NounID:             n.ID,
				GematriaConfidence: n.GematriaConfidence,
				AIConfidence:       n.AIConfidence,
				Reason:             reason,
			})
		}

		records = append(records, record)
	}

	if err := v.audit.SaveConfidenceAudit(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to persist confidence audit: %w", err)
	}

	if len(failures) > 0 {
		logger.Error(
			"[Confidence] Gate failed",
			"run_id", runID,
			"failed", len(failures),
			"total", len(nouns),
		)
		return records, &ValidationError{RunID: runID, LowConfidenceNouns: failures}
	}

	logger.Info("[Confidence] Gate passed", "run_id", runID, "nouns", len(nouns))
	return records, nil
}

func failureReason(n common.Noun, thresholds Thresholds) string {
	gematriaOK := n.GematriaConfidence >= thresholds.Gematria
	aiOK := n.AIConfidence >= thresholds.AI

	switch {
	case !gematriaOK && !aiOK:
		return fmt.Sprintf(
			"gematria confidence %.2f < %.2f and ai confidence %.2f < %.2f",
			n.GematriaConfidence, thresholds.Gematria, n.AIConfidence, thresholds.AI,
		)
	case !gematriaOK:
		return fmt.Sprintf("gematria confidence %.2f < %.2f", n.GematriaConfidence, thresholds.Gematria)
	case !aiOK:
		return fmt.Sprintf("ai confidence %.2f < %.2f", n.AIConfidence, thresholds.AI)
	default:
		return ""
	}
}
