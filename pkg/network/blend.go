package network

import "github.com/seferlab/lexgraph/pkg/common"

// Blend combines the recall similarity and the rerank score into a single
// edge strength using the configured weights.
func (cfg Config) Blend(cosine, rerankScore float64) float64 {
	return cfg.WeightCosine*cosine + cfg.WeightRerank*rerankScore
}

// Classify maps a blended strength onto an edge class. Strengths below the
// weak threshold yield an empty classification, meaning the edge is
// discarded and never persisted.
func (cfg Config) Classify(strength float64) string {
	switch {
	case strength >= cfg.StrongThreshold:
		return common.EdgeStrong
	case strength >= cfg.WeakThreshold:
		return common.EdgeWeak
	default:
		return ""
	}
}
