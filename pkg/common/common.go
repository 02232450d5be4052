package common

import "time"

// Noun represents a discovered lexical entity. Nouns arrive from an upstream
// discovery collaborator, are normalized at the ingestion boundary, and are
// augmented in place by enrichment before graph construction consumes them
// read-only.
//
// A noun carries:
//   - Surface: the surface text of the lexical item (never empty, never a placeholder)
//   - Letters: the decomposed symbolic units of the surface text
//   - GematriaValue: the integer value derived deterministically from the surface text
//   - Sources: provenance records linking the noun back to its discovery context
type Noun struct {
	ID            string         `json:"noun_id"`
	Surface       string         `json:"surface"`
	Letters       []string       `json:"letters"`
	GematriaValue int            `json:"gematria_value"`
	Class         string         `json:"class"`
	Analysis      map[string]any `json:"analysis,omitempty"`
	Sources       []Source       `json:"sources,omitempty"`

	// Confidence scores attached by enrichment. Both default to 1.0 when the
	// value was computed deterministically rather than AI-estimated.
	GematriaConfidence float64 `json:"gematria_confidence"`
	AIConfidence       float64 `json:"confidence"`

	// Insight is the free-text AI commentary produced by enrichment.
	Insight string `json:"insight,omitempty"`
}

// Source is a provenance record pointing at the reference the noun was
// discovered in, with an optional character offset.
type Source struct {
	Ref    string `json:"ref"`
	Offset *int   `json:"offset,omitempty"`
}

// PrimaryCitation returns the first source reference, or "" when the noun
// carries no provenance.
func (n Noun) PrimaryCitation() string {
	if len(n.Sources) == 0 {
		return ""
	}
	return n.Sources[0].Ref
}

// Noun class tags. Unknown classes are normalized to ClassOther at the
// ingestion boundary.
const (
	ClassPerson = "person"
	ClassPlace  = "place"
	ClassThing  = "thing"
	ClassOther  = "other"
)

// NormalizeClass maps an arbitrary class tag into the closed class set.
func NormalizeClass(class string) string {
	switch class {
	case ClassPerson, ClassPlace, ClassThing:
		return class
	default:
		return ClassOther
	}
}

// ConceptNode is the persisted representation of one noun's embedding.
// Embeddings are unit-normalized before storage so cosine similarity
// reduces to a dot product downstream.
type ConceptNode struct {
	NounID    string    `json:"noun_id"`
	Embedding []float32 `json:"embedding"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge classification tags. Edges below the weak threshold are computed but
// never persisted.
const (
	EdgeStrong = "strong"
	EdgeWeak   = "weak"
)

// ConceptEdge is a weighted relationship between two concept nodes, keyed by
// (SourceID, TargetID). A rerun with the same inputs overwrites the edge
// rather than accumulating a second one.
type ConceptEdge struct {
	SourceID       string    `json:"source_id"`
	TargetID       string    `json:"target_id"`
	Cosine         float64   `json:"cosine"`
	RerankScore    float64   `json:"rerank_score"`
	Strength       float64   `json:"strength"`
	Classification string    `json:"classification"`
	RerankModel    string    `json:"rerank_model"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConfidenceRecord is the per-noun audit row written by the confidence
// validator. One record is persisted per noun per run regardless of outcome.
type ConfidenceRecord struct {
	RunID              string  `json:"run_id"`
	NounID             string  `json:"noun_id"`
	GematriaConfidence float64 `json:"gematria_confidence"`
	AIConfidence       float64 `json:"ai_confidence"`
	GematriaThreshold  float64 `json:"gematria_threshold"`
	AIThreshold        float64 `json:"ai_threshold"`
	Passed             bool    `json:"passed"`
	AbortReason        string  `json:"abort_reason,omitempty"`
}
