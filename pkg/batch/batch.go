package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/seferlab/lexgraph/internal/util"
	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/noun"

	"github.com/go-playground/validator"
)

// Config holds the batch admission policy. It is read at call time, not at
// process start, so operators can change the policy between runs without a
// restart.
type Config struct {
	MinBatchSize  int    `json:"min_batch_size" validate:"gte=1"`
	AllowPartial  bool   `json:"allow_partial"`
	PartialReason string `json:"partial_reason"`
	ReviewDir     string `json:"review_dir"`
}

// ConfigFromEnv builds the admission policy from the environment and
// validates it.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		MinBatchSize:  util.GetEnvInt("BATCH_MIN_SIZE", 10),
		AllowPartial:  util.GetEnvBool("BATCH_ALLOW_PARTIAL", false),
		PartialReason: util.GetEnv("BATCH_PARTIAL_REASON"),
		ReviewDir:     util.GetEnvString("BATCH_REVIEW_DIR", "review"),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid batch config: %w", err)
	}
	return cfg, nil
}

// ErrNoWork is returned when a batch arrives with zero nouns under the
// partial-allow override: an empty batch is a distinct no-work case, never
// silently processed. Without the override, an empty batch is an ordinary
// below-minimum abort.
var ErrNoWork = errors.New("batch: no nouns to process")

// AbortError is the fatal admission failure: the batch is below the minimum
// size and no override was set. It carries the counts that produced the
// decision and the path of the review artifact written for operator triage.
type AbortError struct {
	NounsAvailable int
	NounsRequired  int
	ReviewPath     string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf(
		"batch aborted: %d nouns available, %d required (review artifact: %s)",
		e.NounsAvailable, e.NounsRequired, e.ReviewPath,
	)
}

// Result is the per-noun outcome of batch processing. Error entries are
// retained instead of dropped so the output count always equals the input
// count.
type Result struct {
	NounID string       `json:"noun_id"`
	Noun   *common.Noun `json:"noun,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Bundle is the admitted batch: the content-addressed identifier, the policy
// used, the per-noun results in canonical order and the hash manifest.
type Bundle struct {
	BatchID   string    `json:"batch_id"`
	Config    Config    `json:"config"`
	Processed int       `json:"processed"`
	Results   []Result  `json:"results"`
	Manifest  Manifest  `json:"manifest"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateSize enforces the minimum-size admission policy.
//
// Below the minimum with no override it writes a review artifact (one record
// per input noun) and returns an AbortError. With AllowPartial set it
// proceeds but emits a warning carrying the override reason, as a deliberate
// audit trail. Zero nouns under the override is ErrNoWork.
func ValidateSize(nouns []common.Noun, cfg Config) error {
	if len(nouns) == 0 && cfg.AllowPartial {
		return ErrNoWork
	}
	if len(nouns) >= cfg.MinBatchSize {
		return nil
	}

	if cfg.AllowPartial {
		logger.Warn(
			"[Batch] Partial batch admitted by override",
			"available", len(nouns),
			"required", cfg.MinBatchSize,
			"reason", cfg.PartialReason,
		)
		return nil
	}

	reviewPath, err := WriteReviewArtifact(cfg.ReviewDir, nouns)
	if err != nil {
		return fmt.Errorf("batch below minimum size and review artifact failed: %w", err)
	}

	return &AbortError{
		NounsAvailable: len(nouns),
		NounsRequired:  cfg.MinBatchSize,
		ReviewPath:     reviewPath,
	}
}

// Process admits a batch: it validates the size policy, computes the
// content-addressed batch identifier over the sorted noun list, runs the pure
// per-noun normalization step and builds the hash manifest.
//
// Per-noun normalization errors are captured inline as error results; one bad
// noun never discards the rest of the batch.
func Process(nouns []common.Noun, cfg Config) (*Bundle, error) {
	if err := ValidateSize(nouns, cfg); err != nil {
		return nil, err
	}

	sorted := SortCanonical(nouns)
	batchID, err := ComputeBatchID(sorted)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(sorted))
	processed := 0
	for _, n := range sorted {
		normalized, err := noun.Normalize(n)
		if err != nil {
			logger.Warn("[Batch] Noun failed normalization", "noun_id", n.ID, "err", err)
			results = append(results, Result{NounID: n.ID, Error: err.Error()})
			continue
		}
		results = append(results, Result{NounID: normalized.ID, Noun: &normalized})
		processed++
	}

	bundle := &Bundle{
		BatchID:   batchID,
		Config:    cfg,
		Processed: processed,
		Results:   results,
		Manifest:  buildManifest(batchID, cfg, sorted, results),
		CreatedAt: time.Now().UTC(),
	}

	logger.Info(
		"[Batch] Batch admitted",
		"batch_id", batchID,
		"nouns", len(sorted),
		"processed", processed,
	)

	return bundle, nil
}

// Nouns returns the successfully normalized nouns of the bundle, in canonical
// order.
func (b *Bundle) Nouns() []common.Noun {
	nouns := make([]common.Noun, 0, b.Processed)
	for _, r := range b.Results {
		if r.Noun != nil {
			nouns = append(nouns, *r.Noun)
		}
	}
	return nouns
}
