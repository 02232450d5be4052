package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/seferlab/lexgraph/internal/util"

	"github.com/seferlab/lexgraph/pkg/ai"
	oai "github.com/seferlab/lexgraph/pkg/ai/ollama"
	gai "github.com/seferlab/lexgraph/pkg/ai/openai"
	"github.com/seferlab/lexgraph/pkg/batch"
	"github.com/seferlab/lexgraph/pkg/confidence"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/logger/console"
	"github.com/seferlab/lexgraph/pkg/network"
	"github.com/seferlab/lexgraph/pkg/noun"
	"github.com/seferlab/lexgraph/pkg/pipeline"
	storepgx "github.com/seferlab/lexgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/lib/pq"
)

// One-shot pipeline run over a JSON file of extracted nouns. The same stages
// the queue worker runs, without RabbitMQ in between.
func main() {
	input := flag.String("input", "", "path to a JSON array of extracted nouns")
	runID := flag.String("run-id", "", "resume an existing run instead of starting fresh")
	flag.Parse()

	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if *input == "" {
		logger.Fatal("Missing required flag", "flag", "-input")
	}

	raw, err := os.ReadFile(*input)
	if err != nil {
		logger.Fatal("Failed to read input file", "path", *input, "err", err)
	}

	var rawNouns []map[string]any
	if err := json.Unmarshal(raw, &rawNouns); err != nil {
		logger.Fatal("Failed to parse input file", "path", *input, "err", err)
	}

	nouns, err := noun.AdaptAll(rawNouns)
	if err != nil {
		logger.Fatal("Failed to adapt nouns", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := util.GetEnv("AI_ADAPTER")
	var aiClient ai.GraphAIClient

	switch adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			RerankModel:    util.GetEnv("AI_RERANK_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			TimeoutSec:            util.GetEnvInt("AI_TIMEOUT_SEC", 60),
			MaxRetries:            util.GetEnvInt("AI_MAX_RETRIES", 3),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = client
	default:
		aiClient = gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			RerankModel:    util.GetEnv("AI_RERANK_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			TimeoutSec:            util.GetEnvInt("AI_TIMEOUT_SEC", 60),
			MaxRetries:            util.GetEnvInt("AI_MAX_RETRIES", 3),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 8)),
		})
	}

	if err := storepgx.Migrate(util.GetEnv("DATABASE_URL")); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	poolCfg, err := storepgx.PoolConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid database URL", "err", err)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphStore, err := storepgx.NewGraphDBStoreWithConnection(ctx, pgConn)
	if err != nil {
		logger.Fatal("Failed to create graph store", "err", err)
	}
	if err := graphStore.Ping(ctx); err != nil {
		logger.Fatal("Database ping failed", "err", err)
	}

	networkCfg, err := network.ConfigFromEnv()
	if err != nil {
		logger.Fatal("Invalid network config", "err", err)
	}

	runner, err := pipeline.NewGraphPipeline(pipeline.GraphPipelineParams{
		BatchConfig: batch.ConfigFromEnv,
		Thresholds:  confidence.ThresholdsFromEnv,
		Validator:   confidence.New(graphStore),
		Aggregator:  network.New(networkCfg, aiClient, aiClient, graphStore),
		Checkpoints: graphStore,
	})
	if err != nil {
		logger.Fatal("Failed to build pipeline", "err", err)
	}

	state := &pipeline.State{
		RunID: *runID,
		Nouns: nouns,
	}

	err = runner.Run(ctx, state)
	if errors.Is(err, batch.ErrNoWork) {
		logger.Info("Empty batch, nothing to do", "run_id", state.RunID)
		return
	}
	if err != nil {
		logger.Fatal("Pipeline run failed", "run_id", state.RunID, "err", err)
	}

	if state.Summary != nil {
		logger.Info("Pipeline run finished",
			"run_id", state.RunID,
			"batch_id", state.Batch.BatchID,
			"nodes", state.Summary.NodesUpserted,
			"strong", state.Summary.EdgesStrong,
			"weak", state.Summary.EdgesWeak,
			"mean_strength", state.Summary.MeanEdgeStrength)
	}
}
