package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/seferlab/lexgraph/internal/util"
	"github.com/seferlab/lexgraph/pkg/ai"
)

// Rerank scores candidate documents against the query document using the
// configured chat model on Ollama with JSON-formatted output. Scores are
// returned in candidate order, clamped into [0,1].
func (c *GraphOllamaClient) Rerank(
	ctx context.Context,
	query string,
	candidates []string,
) ([]float32, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	return util.RetryWithBackoff(ctx, c.maxTries, time.Second,
		func(ctx context.Context) ([]float32, error) {
			return c.rerankOnce(ctx, query, candidates)
		})
}

func (c *GraphOllamaClient) rerankOnce(
	ctx context.Context,
	query string,
	candidates []string,
) ([]float32, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(c.timeoutSec))
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	schema, err := json.Marshal(ai.GenerateSchema(ai.RerankResponse{}))
	if err != nil {
		return nil, fmt.Errorf("failed to build rerank schema: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: c.rerankModel,
		Messages: []api.Message{
			{Role: "system", Content: ai.RerankSystemPrompt()},
			{Role: "user", Content: ai.BuildRerankPrompt(query, candidates)},
		},
		Stream: &stream,
		Format: schema,
		Options: map[string]any{
			"temperature": 0.0,
		},
	}

	var content strings.Builder
	var lastMetrics api.Metrics
	err = c.Client.Chat(rCtx, req, func(res api.ChatResponse) error {
		content.WriteString(res.Message.Content)
		if res.Done {
			lastMetrics = res.Metrics
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics := ai.ModelMetrics{
		InputTokens:  lastMetrics.PromptEvalCount,
		OutputTokens: lastMetrics.EvalCount,
		TotalTokens:  lastMetrics.PromptEvalCount + lastMetrics.EvalCount,
		DurationMs:   lastMetrics.TotalDuration.Milliseconds(),
	}
	c.modifyMetrics(metrics)

	var parsed ai.RerankResponse
	if err := ai.UnmarshalFlexible(content.String(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	return ai.ScoresFromResponse(parsed, len(candidates)), nil
}
