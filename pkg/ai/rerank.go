package ai

import (
	"fmt"
	"strings"
)

// RerankScore is one candidate relevance score in a structured rerank reply.
type RerankScore struct {
	Index int     `json:"index" jsonschema_description:"Zero-based index of the candidate document being scored."`
	Score float64 `json:"score" jsonschema_description:"Relevance of the candidate to the query document, between 0.0 and 1.0."`
}

// RerankResponse is the structured output requested from the scoring model.
type RerankResponse struct {
	Scores []RerankScore `json:"scores" jsonschema_description:"Exactly one relevance score per candidate document, in any order."`
}

const rerankSystemPrompt = `You are a relevance scoring engine. Given a query document and a numbered list of candidate documents, score how semantically related each candidate is to the query. A score of 1.0 means the candidate describes the same or a tightly related concept; 0.0 means it is unrelated. Score every candidate exactly once.`

// BuildRerankPrompt renders the query and candidates into the scoring prompt.
func BuildRerankPrompt(query string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Query document:\n")
	b.WriteString(query)
	b.WriteString("\n\nCandidate documents:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, c)
	}
	b.WriteString("\nReturn a relevance score between 0.0 and 1.0 for every candidate index.")
	return b.String()
}

// RerankSystemPrompt returns the system prompt for rerank scoring requests.
func RerankSystemPrompt() string {
	return rerankSystemPrompt
}

// ScoresFromResponse maps a structured rerank reply onto a score slice with
// the same length and order as the candidate list. Scores are clamped into
// [0,1]; candidates the model failed to score default to 0.
func ScoresFromResponse(resp RerankResponse, candidateCount int) []float32 {
	scores := make([]float32, candidateCount)
	for _, s := range resp.Scores {
		if s.Index < 0 || s.Index >= candidateCount {
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[s.Index] = float32(score)
	}
	return scores
}
