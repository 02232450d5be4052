package pipeline

import (
	"context"
	"fmt"

	"github.com/seferlab/lexgraph/pkg/batch"
	"github.com/seferlab/lexgraph/pkg/confidence"
	"github.com/seferlab/lexgraph/pkg/network"
)

const (
	StageBatch      = "batch"
	StageConfidence = "confidence"
	StageNetwork    = "network"
)

// GraphPipelineParams collects the dependencies of the standard three-stage
// graph pipeline. The config funcs are called when their stage runs, not when
// the pipeline is built, so policy changes apply to in-flight runs.
type GraphPipelineParams struct {
	BatchConfig func() (batch.Config, error)
	Thresholds  func() (confidence.Thresholds, error)
	Validator   *confidence.Validator
	Aggregator  *network.Aggregator
	Checkpoints CheckpointStore
}

// NewGraphPipeline wires the batch, confidence and network stages into a
// runner. The confidence stage is a hard gate: a validation failure aborts
// the run before any network aggregation happens.
func NewGraphPipeline(params GraphPipelineParams) (*Runner, error) {
	if params.BatchConfig == nil {
		return nil, fmt.Errorf("batch config getter is required")
	}
	if params.Thresholds == nil {
		return nil, fmt.Errorf("thresholds getter is required")
	}
	if params.Validator == nil {
		return nil, fmt.Errorf("confidence validator is required")
	}
	if params.Aggregator == nil {
		return nil, fmt.Errorf("network aggregator is required")
	}

	stages := []Stage{
		{
			Name: StageBatch,
			Run: func(ctx context.Context, state *State) error {
				cfg, err := params.BatchConfig()
				if err != nil {
					return err
				}
				bundle, err := batch.Process(state.Nouns, cfg)
				if err != nil {
					return err
				}
				state.Batch = bundle
				return nil
			},
		},
		{
			Name: StageConfidence,
			Run: func(ctx context.Context, state *State) error {
				thresholds, err := params.Thresholds()
				if err != nil {
					return err
				}
				records, err := params.Validator.Validate(
					ctx, state.Batch.Nouns(), state.RunID, thresholds)
				state.Confidence = records
				if err != nil {
					return err
				}
				state.ValidationPassed = true
				return nil
			},
		},
		{
			Name: StageNetwork,
			Run: func(ctx context.Context, state *State) error {
				summary, err := params.Aggregator.Aggregate(ctx, state.RunID, state.Batch.Nouns())
				if err != nil {
					return err
				}
				state.Summary = summary
				return nil
			},
		},
	}

	return NewRunner(stages, params.Checkpoints), nil
}
