package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/seferlab/lexgraph/pkg/batch"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/noun"
	"github.com/seferlab/lexgraph/pkg/pipeline"
)

// AggregateRunMsg is the payload published to the aggregate queue. Nouns
// arrive as loosely-shaped maps from upstream extractors and are adapted
// into the canonical form before the pipeline runs.
type AggregateRunMsg struct {
	Message string           `json:"message"`
	RunID   string           `json:"run_id,omitempty"`
	Nouns   []map[string]any `json:"nouns"`
}

// ProcessAggregateMessage decodes one aggregate run message and executes the
// pipeline for it. A no-work batch is acked without error; a batch abort or
// validation failure is a real processing error and goes down the retry path.
func ProcessAggregateMessage(
	ctx context.Context,
	runner *pipeline.Runner,
	body string,
) error {
	var msg AggregateRunMsg
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("decoding aggregate message: %w", err)
	}

	nouns, err := noun.AdaptAll(msg.Nouns)
	if err != nil {
		return fmt.Errorf("adapting nouns: %w", err)
	}

	state := &pipeline.State{
		RunID: msg.RunID,
		Nouns: nouns,
	}

	err = runner.Run(ctx, state)
	if errors.Is(err, batch.ErrNoWork) {
		logger.Info("[Queue] Empty batch, nothing to do", "run_id", state.RunID)
		return nil
	}
	if err != nil {
		return err
	}

	if state.Summary != nil {
		logger.Info("[Queue] Aggregate run finished",
			"run_id", state.RunID,
			"batch_id", state.Batch.BatchID,
			"nodes", state.Summary.NodesUpserted,
			"strong", state.Summary.EdgesStrong,
			"weak", state.Summary.EdgesWeak)
	}
	return nil
}
