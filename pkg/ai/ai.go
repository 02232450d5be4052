package ai

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient turns text documents into fixed-dimension vectors. The
// dimension is declared by configuration; callers assert it on every vector.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// EmbeddingBatcher is the optional fast path for clients that support
// embedding several documents in one request.
type EmbeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// RerankClient scores candidate documents against a query document. Scores
// are in [0,1], same length and order as candidates. ModelName identifies the
// scoring model for the persisted edge rows.
type RerankClient interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float32, error)
	ModelName() string
}

// GraphAIClient bundles everything the pipeline needs from one AI backend.
type GraphAIClient interface {
	EmbeddingClient
	RerankClient
	GetMetrics() ModelMetrics
	ResetMetrics()
}

// ModelMetrics contains accumulated performance metrics from AI operations.
type ModelMetrics struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	DurationMs   int64 `json:"duration_ms"`
}

// GenerateOptions holds configuration for rerank chat requests.
type GenerateOptions struct {
	Model       string
	Temperature float64
}

// GenerateOption is a functional option for configuring rerank chat requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// GenerateEmbeddings embeds several documents, using the client's batch fast
// path when available and falling back to concurrent single-document calls
// otherwise. The output preserves input order.
func GenerateEmbeddings(
	ctx context.Context,
	client EmbeddingClient,
	inputs [][]byte,
) ([][]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := client.(EmbeddingBatcher); ok {
		return b.GenerateEmbeddings(ctx, inputs)
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	for i := range inputs {
		idx := i
		in := inputs[i]
		eg.Go(func() error {
			emb, err := client.GenerateEmbedding(ectx, in)
			if err != nil {
				return err
			}
			out[idx] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
