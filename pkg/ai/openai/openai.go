package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/seferlab/lexgraph/pkg/ai"
)

// GraphOpenAIClient implements the embedding and rerank collaborator
// contracts against OpenAI-compatible endpoints. It manages separate clients
// for embeddings and rerank chat calls so the two can point at different
// providers.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel string
	rerankModel    string

	embeddingURL string
	embeddingKey string
	chatURL      string
	chatKey      string

	timeoutSec int
	maxTries   int

	embeddingLock *semaphore.Weighted
	chatLock      *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient.
//
// EmbeddingModel specifies the model used for embeddings and RerankModel the
// chat model used for relevance scoring. The URL/Key pairs configure the two
// endpoints independently.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel string
	RerankModel    string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	TimeoutSec            int
	MaxRetries            int
	MaxConcurrentRequests int64
}

// NewGraphOpenAIClient creates and returns a new client configured with the
// provided parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		EmbeddingModel: "text-embedding-3-small",
//		RerankModel:    "gpt-4o-mini",
//		EmbeddingKey:   os.Getenv("OPENAI_API_KEY"),
//		ChatKey:        os.Getenv("OPENAI_API_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	timeoutSec := params.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 60
	}
	maxTries := params.MaxRetries
	if maxTries <= 0 {
		maxTries = 3
	}

	return &GraphOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		rerankModel:    params.RerankModel,

		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,
		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,

		timeoutSec: timeoutSec,
		maxTries:   maxTries,

		embeddingLock: semaphore.NewWeighted(maxConcurrent),
		chatLock:      semaphore.NewWeighted(maxConcurrent),

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

func newOpenaiClient(baseURL, apiKey string) *openai.Client {
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(opts...)
	return &client
}

// ModelName returns the rerank model identifier persisted on edge rows.
func (c *GraphOpenAIClient) ModelName() string {
	return c.rerankModel
}

// GetMetrics returns the accumulated model metrics.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics clears the accumulated model metrics.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

func (c *GraphOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}
