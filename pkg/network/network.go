package network

import (
	"fmt"

	"github.com/seferlab/lexgraph/internal/util"

	"github.com/go-playground/validator"
)

// Config holds the tunables for network aggregation. The weights sum to the
// maximum achievable edge strength; with the defaults an edge needs both a
// high recall similarity and a high rerank score to classify as strong.
type Config struct {
	EmbedDim        int     `validate:"gte=1"`
	EmbedBatchSize  int     `validate:"gte=1"`
	TopK            int     `validate:"gte=1"`
	MaxParallel     int     `validate:"gte=1"`
	RerankMinScore  float64 `validate:"gte=0,lte=1"`
	WeightCosine    float64 `validate:"gte=0,lte=1"`
	WeightRerank    float64 `validate:"gte=0,lte=1"`
	StrongThreshold float64 `validate:"gte=0,lte=1"`
	WeakThreshold   float64 `validate:"gte=0,lte=1"`
}

// DefaultConfig returns the aggregation defaults used when no environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		EmbedDim:        1024,
		EmbedBatchSize:  16,
		TopK:            20,
		MaxParallel:     4,
		RerankMinScore:  0.50,
		WeightCosine:    0.5,
		WeightRerank:    0.5,
		StrongThreshold: 0.90,
		WeakThreshold:   0.75,
	}
}

// ConfigFromEnv reads aggregation settings from the environment, falling
// back to the defaults, and validates the result.
func ConfigFromEnv() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		EmbedDim:        util.GetEnvInt("AI_EMBED_DIM", def.EmbedDim),
		EmbedBatchSize:  util.GetEnvInt("NETWORK_EMBED_BATCH", def.EmbedBatchSize),
		TopK:            util.GetEnvInt("NETWORK_TOP_K", def.TopK),
		MaxParallel:     util.GetEnvInt("NETWORK_MAX_PARALLEL", def.MaxParallel),
		RerankMinScore:  util.GetEnvFloat("NETWORK_RERANK_MIN_SCORE", def.RerankMinScore),
		WeightCosine:    util.GetEnvFloat("NETWORK_WEIGHT_COSINE", def.WeightCosine),
		WeightRerank:    util.GetEnvFloat("NETWORK_WEIGHT_RERANK", def.WeightRerank),
		StrongThreshold: util.GetEnvFloat("NETWORK_STRONG_THRESHOLD", def.StrongThreshold),
		WeakThreshold:   util.GetEnvFloat("NETWORK_WEAK_THRESHOLD", def.WeakThreshold),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid network config: %w", err)
	}
	if cfg.WeakThreshold > cfg.StrongThreshold {
		return Config{}, fmt.Errorf("invalid network config: weak threshold %.2f above strong threshold %.2f",
			cfg.WeakThreshold, cfg.StrongThreshold)
	}
	return cfg, nil
}

// AggregationError signals a fatal aggregation failure. Nothing is persisted
// for the failing run once it is raised.
type AggregationError struct {
	Stage  string
	Reason string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("network aggregation failed at %s: %s", e.Stage, e.Reason)
}

// Summary reports what one aggregation run produced.
type Summary struct {
	RunID            string  `json:"run_id"`
	NodesUpserted    int     `json:"nodes_upserted"`
	NodesSkipped     int     `json:"nodes_skipped"`
	EdgesStrong      int     `json:"edges_strong"`
	EdgesWeak        int     `json:"edges_weak"`
	EdgesDiscarded   int     `json:"edges_discarded"`
	EmbeddingCalls   int     `json:"embedding_calls"`
	RerankCalls      int     `json:"rerank_calls"`
	MeanEdgeStrength float64 `json:"mean_edge_strength"`
	RerankHitRate    float64 `json:"rerank_hit_rate"`
}
