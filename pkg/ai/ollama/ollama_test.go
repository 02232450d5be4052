package ollama

import "testing"

func TestNewGraphOllamaClientDefaults(t *testing.T) {
	c, err := NewGraphOllamaClient(NewGraphOllamaClientParams{
		EmbeddingModel: "embed",
		RerankModel:    "rerank",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.timeoutSec != 60 {
		t.Errorf("expected default timeout 60s, got %d", c.timeoutSec)
	}
	if c.maxTries != 3 {
		t.Errorf("expected default of 3 tries, got %d", c.maxTries)
	}
}

func TestNewGraphOllamaClientTunables(t *testing.T) {
	c, err := NewGraphOllamaClient(NewGraphOllamaClientParams{
		EmbeddingModel: "embed",
		RerankModel:    "rerank",

		TimeoutSec:            5,
		MaxRetries:            7,
		MaxConcurrentRequests: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.timeoutSec != 5 {
		t.Errorf("expected timeout 5s, got %d", c.timeoutSec)
	}
	if c.maxTries != 7 {
		t.Errorf("expected 7 tries, got %d", c.maxTries)
	}
}
