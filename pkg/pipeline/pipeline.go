package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seferlab/lexgraph/pkg/batch"
	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/network"
	"github.com/seferlab/lexgraph/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// State is the data flowing through the pipeline. It is fully
// JSON-serializable so a run can checkpoint after every stage and resume
// after a crash without redoing completed work.
type State struct {
	RunID            string                    `json:"run_id"`
	Nouns            []common.Noun             `json:"nouns"`
	Batch            *batch.Bundle             `json:"batch,omitempty"`
	Confidence       []common.ConfidenceRecord `json:"confidence,omitempty"`
	ValidationPassed bool                      `json:"validation_passed"`
	Summary          *network.Summary          `json:"summary,omitempty"`
}

// Stage is one named pipeline step operating on the shared state.
type Stage struct {
	Name string
	Run  func(ctx context.Context, state *State) error
}

// CheckpointStore persists pipeline state between stages.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp store.Checkpoint) error
	LoadCheckpoint(ctx context.Context, runID string) (*store.Checkpoint, error)
}

// Runner executes stages in order, checkpointing after each. A nil
// checkpoint store disables persistence and resume.
type Runner struct {
	stages      []Stage
	checkpoints CheckpointStore
}

func NewRunner(stages []Stage, checkpoints CheckpointStore) *Runner {
	return &Runner{stages: stages, checkpoints: checkpoints}
}

// NewRunID mints a fresh pipeline run identifier.
func NewRunID() string {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the OS entropy source does.
		logger.Fatal("Failed to generate run id", "err", err)
	}
	return "run_" + id
}

// Run executes the pipeline for the given state. When a checkpoint exists
// for the run, completed stages are skipped and the state is restored from
// the checkpoint before the remaining stages execute.
func (r *Runner) Run(ctx context.Context, state *State) error {
	if state.RunID == "" {
		state.RunID = NewRunID()
	}

	resumeAfter := ""
	if r.checkpoints != nil {
		cp, err := r.checkpoints.LoadCheckpoint(ctx, state.RunID)
		if err != nil {
			return fmt.Errorf("loading checkpoint: %w", err)
		}
		if cp != nil {
			if err := json.Unmarshal(cp.State, state); err != nil {
				return fmt.Errorf("decoding checkpoint state: %w", err)
			}
			resumeAfter = cp.Stage
			logger.Info("[Pipeline] Resuming run",
				"run_id", state.RunID, "after_stage", cp.Stage)
		}
	}

	if resumeAfter != "" && !r.hasStage(resumeAfter) {
		return fmt.Errorf("checkpoint for run %s references unknown stage %q", state.RunID, resumeAfter)
	}

	skipping := resumeAfter != ""
	for _, stage := range r.stages {
		if skipping {
			if stage.Name == resumeAfter {
				skipping = false
			}
			logger.Debug("[Pipeline] Skipping completed stage",
				"run_id", state.RunID, "stage", stage.Name)
			continue
		}

		logger.Info("[Pipeline] Running stage", "run_id", state.RunID, "stage", stage.Name)
		start := time.Now()
		if err := stage.Run(ctx, state); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		logger.Info("[Pipeline] Stage finished",
			"run_id", state.RunID, "stage", stage.Name,
			"duration_ms", time.Since(start).Milliseconds())

		if err := r.saveCheckpoint(ctx, stage.Name, state); err != nil {
			return fmt.Errorf("checkpointing stage %s: %w", stage.Name, err)
		}
	}

	return nil
}

func (r *Runner) hasStage(name string) bool {
	for _, stage := range r.stages {
		if stage.Name == name {
			return true
		}
	}
	return false
}

func (r *Runner) saveCheckpoint(ctx context.Context, stageName string, state *State) error {
	if r.checkpoints == nil {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.checkpoints.SaveCheckpoint(ctx, store.Checkpoint{
		RunID:     state.RunID,
		Stage:     stageName,
		State:     raw,
		CreatedAt: time.Now().UTC(),
	})
}
