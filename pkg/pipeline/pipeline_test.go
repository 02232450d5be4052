package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/seferlab/lexgraph/pkg/store"
)

type memCheckpoints struct {
	byRun map[string]store.Checkpoint
	saves int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{byRun: make(map[string]store.Checkpoint)}
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, cp store.Checkpoint) error {
	m.saves++
	m.byRun[cp.RunID] = cp
	return nil
}

func (m *memCheckpoints) LoadCheckpoint(_ context.Context, runID string) (*store.Checkpoint, error) {
	cp, ok := m.byRun[runID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func countingStage(name string, counter *int, fail *bool) Stage {
	return Stage{
		Name: name,
		Run: func(_ context.Context, _ *State) error {
			if fail != nil && *fail {
				return fmt.Errorf("stage %s failed", name)
			}
			*counter++
			return nil
		},
	}
}

func TestRunnerExecutesStagesInOrder(t *testing.T) {
	order := make([]string, 0, 3)
	stages := []Stage{
		{Name: "a", Run: func(_ context.Context, _ *State) error {
			order = append(order, "a")
			return nil
		}},
		{Name: "b", Run: func(_ context.Context, _ *State) error {
			order = append(order, "b")
			return nil
		}},
	}

	r := NewRunner(stages, nil)
	state := &State{}
	if err := r.Run(context.Background(), state); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected stage order: %v", order)
	}
	if state.RunID == "" {
		t.Errorf("expected run id to be minted")
	}
}

func TestRunnerCheckpointsAfterEachStage(t *testing.T) {
	cps := newMemCheckpoints()
	var ran int
	stages := []Stage{
		countingStage("a", &ran, nil),
		countingStage("b", &ran, nil),
	}

	r := NewRunner(stages, cps)
	if err := r.Run(context.Background(), &State{RunID: "run-1"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if cps.saves != 2 {
		t.Errorf("expected 2 checkpoints, got %d", cps.saves)
	}
	if cps.byRun["run-1"].Stage != "b" {
		t.Errorf("expected last checkpoint at stage b, got %q", cps.byRun["run-1"].Stage)
	}
}

func TestRunnerResumesAfterFailure(t *testing.T) {
	cps := newMemCheckpoints()
	var ranA, ranB int
	failB := true
	stages := []Stage{
		countingStage("a", &ranA, nil),
		countingStage("b", &ranB, &failB),
	}

	r := NewRunner(stages, cps)
	err := r.Run(context.Background(), &State{RunID: "run-1"})
	if err == nil {
		t.Fatalf("expected first run to fail at stage b")
	}
	if ranA != 1 {
		t.Fatalf("stage a should have run once, ran %d times", ranA)
	}

	failB = false
	if err := r.Run(context.Background(), &State{RunID: "run-1"}); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if ranA != 1 {
		t.Errorf("stage a re-ran on resume: %d executions", ranA)
	}
	if ranB != 1 {
		t.Errorf("stage b should have run exactly once, ran %d times", ranB)
	}
}

func TestRunnerRejectsUnknownCheckpointStage(t *testing.T) {
	cps := newMemCheckpoints()
	cps.byRun["run-1"] = store.Checkpoint{
		RunID: "run-1",
		Stage: "renamed-away",
		State: []byte(`{"run_id":"run-1"}`),
	}

	var ran int
	stages := []Stage{
		countingStage("a", &ran, nil),
		countingStage("b", &ran, nil),
	}

	r := NewRunner(stages, cps)
	err := r.Run(context.Background(), &State{RunID: "run-1"})
	if err == nil {
		t.Fatalf("expected error for checkpoint at unknown stage")
	}
	if ran != 0 {
		t.Errorf("no stage should run when the resume point is unknown, %d ran", ran)
	}
}

func TestRunnerStageErrorWrapped(t *testing.T) {
	sentinel := errors.New("boom")
	stages := []Stage{
		{Name: "x", Run: func(_ context.Context, _ *State) error { return sentinel }},
	}
	r := NewRunner(stages, nil)
	err := r.Run(context.Background(), &State{RunID: "run-1"})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel error, got %v", err)
	}
}

func TestNewGraphPipelineRequiresDependencies(t *testing.T) {
	if _, err := NewGraphPipeline(GraphPipelineParams{}); err == nil {
		t.Errorf("expected error for missing dependencies")
	}
}
