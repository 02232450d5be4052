package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/seferlab/lexgraph/internal/util"
	"github.com/seferlab/lexgraph/pkg/ai"
)

// Rerank scores candidate documents against the query document using the
// configured chat model with a strict JSON-schema response format. Scores are
// returned in candidate order, clamped into [0,1].
func (c *GraphOpenAIClient) Rerank(
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

func (c *GraphOpenAIClient) rerankOnce(
	ctx context.Context,
	query string,
	candidates []string,
) ([]float32, error) {
	schema := ai.GenerateSchema(ai.RerankResponse{})
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "rerank_scores",
		Description: openai.String("Relevance scores for candidate documents against a query document."),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(c.timeoutSec))
	defer cancel()

	if err := c.chatLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.chatLock.Release(1)

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.rerankModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(ai.RerankSystemPrompt()),
			openai.UserMessage(ai.BuildRerankPrompt(query, candidates)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Temperature: openai.Float(0.0),
	}

	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(rCtx, body)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start).Milliseconds()

	metrics := ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	}
	c.modifyMetrics(metrics)

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("rerank response has no choices")
	}

	var parsed ai.RerankResponse
	if err := ai.UnmarshalFlexible(response.Choices[0].Message.Content, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	return ai.ScoresFromResponse(parsed, len(candidates)), nil
}
