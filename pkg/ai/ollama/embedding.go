package ollama

import (
	"context"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/seferlab/lexgraph/internal/util"
	"github.com/seferlab/lexgraph/pkg/ai"
)

const defaultDimensions = 1024

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama.
//
// The input is provided as a byte slice and converted to a string before
// being sent to the embedding model. The returned slice contains the
// embedding vector as float32 values.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if len(input) == 0 || len(strings.TrimSpace(string(input))) == 0 {
		dim := util.GetEnvInt("AI_EMBED_DIM", defaultDimensions)
		return make([]float32, dim), nil
	}

	return util.RetryWithBackoff(ctx, c.maxTries, time.Second,
		func(ctx context.Context) ([]float32, error) {
			return c.generateEmbeddingOnce(ctx, input)
		})
}

func (c *GraphOllamaClient) generateEmbeddingOnce(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(c.timeoutSec))
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	}

	err := c.reqLock.Acquire(rCtx, 1)
	if err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}

	durationMs := res.TotalDuration.Milliseconds()

	metrics := ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  durationMs,
	}
	c.modifyMetrics(metrics)

	var out []float32
	for _, v := range res.Embeddings {
		for _, val := range v {
			out = append(out, float32(val))
		}
	}
	return out, nil
}
