package network

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/store"
)

type fakeStore struct {
	nodes       map[string]common.ConceptNode
	edges       map[[2]string]common.ConceptEdge
	neighborsOf map[string][]store.Neighbor
	nodeUpserts int
	edgeUpserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:       make(map[string]common.ConceptNode),
		edges:       make(map[[2]string]common.ConceptEdge),
		neighborsOf: make(map[string][]store.Neighbor),
	}
}

func (f *fakeStore) UpsertNodes(_ context.Context, nodes []common.ConceptNode) error {
	f.nodeUpserts++
	for _, n := range nodes {
		f.nodes[n.NounID] = n
	}
	return nil
}

func (f *fakeStore) NearestNeighbors(_ context.Context, nounID string, _ []float32, k int) ([]store.Neighbor, error) {
	nbs := f.neighborsOf[nounID]
	if len(nbs) > k {
		nbs = nbs[:k]
	}
	return nbs, nil
}

func (f *fakeStore) UpsertEdges(_ context.Context, edges []common.ConceptEdge) error {
	f.edgeUpserts++
	for _, e := range edges {
		f.edges[[2]string{e.SourceID, e.TargetID}] = e
	}
	return nil
}

func (f *fakeStore) SaveConfidenceAudit(_ context.Context, _ []common.ConfidenceRecord) error {
	return nil
}

func (f *fakeStore) SaveCheckpoint(_ context.Context, _ store.Checkpoint) error { return nil }

func (f *fakeStore) LoadCheckpoint(_ context.Context, _ string) (*store.Checkpoint, error) {
	return nil, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

type fakeEmbedder struct {
	dim     int
	failFor string
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, input []byte) ([]float32, error) {
	if f.failFor != "" && strings.Contains(string(input), f.failFor) {
		return nil, fmt.Errorf("embedding backend unavailable")
	}
	emb := make([]float32, f.dim)
	for i := range emb {
		emb[i] = float32(len(input)%7 + 1)
	}
	return emb, nil
}

type fakeReranker struct {
	scores  map[string]float32
	failFor map[string]bool
}

func (f *fakeReranker) Rerank(_ context.Context, query string, candidates []string) ([]float32, error) {
	if f.failFor[query] {
		return nil, fmt.Errorf("rerank backend unavailable")
	}
	out := make([]float32, len(candidates))
	for i, c := range candidates {
		out[i] = f.scores[c]
	}
	return out, nil
}

func (f *fakeReranker) ModelName() string { return "fake-reranker" }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EmbedDim = 8
	return cfg
}

func TestClassifyBoundaries(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		strength float64
		want     string
	}{
		{0.95, common.EdgeStrong},
		{0.90, common.EdgeStrong},
		{0.89, common.EdgeWeak},
		{0.75, common.EdgeWeak},
		{0.74, ""},
		{0.0, ""},
	}
	for _, tt := range tests {
		if got := cfg.Classify(tt.strength); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.strength, got, tt.want)
		}
	}
}

func TestBlendWeights(t *testing.T) {
	cfg := testConfig()
	if got := cfg.Blend(0.80, 0.80); got != 0.80 {
		t.Errorf("Blend(0.80, 0.80) = %v, want 0.80", got)
	}
	cfg.WeightCosine = 0.7
	cfg.WeightRerank = 0.3
	want := 0.7*0.9 + 0.3*0.5
	if got := cfg.Blend(0.9, 0.5); got != want {
		t.Errorf("Blend(0.9, 0.5) = %v, want %v", got, want)
	}
}

func TestAggregateDimensionMismatchPersistsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.EmbedDim = 1024
	st := newFakeStore()
	agg := New(cfg, &fakeEmbedder{dim: 768}, &fakeReranker{}, st)

	_, err := agg.Aggregate(context.Background(), "run-1", []common.Noun{
		{ID: "n1", Surface: "שלום"},
	})
	aggErr, ok := err.(*AggregationError)
	if !ok {
		t.Fatalf("expected AggregationError, got %v", err)
	}
	if aggErr.Stage != "embedding" {
		t.Errorf("expected embedding stage failure, got %q", aggErr.Stage)
	}
	if st.nodeUpserts != 0 || st.edgeUpserts != 0 {
		t.Errorf("store written despite dimension mismatch: nodes=%d edges=%d",
			st.nodeUpserts, st.edgeUpserts)
	}
}

func TestAggregateBlendedWeakEdgePersisted(t *testing.T) {
	cfg := testConfig()
	st := newFakeStore()
	st.neighborsOf["n1"] = []store.Neighbor{{NounID: "n2", Cosine: 0.80}}

	docN2 := BuildDocument(common.Noun{ID: "n2", Surface: "חי"})
	reranker := &fakeReranker{scores: map[string]float32{docN2: 0.80}}
	agg := New(cfg, &fakeEmbedder{dim: cfg.EmbedDim}, reranker, st)

	summary, err := agg.Aggregate(context.Background(), "run-1", []common.Noun{
		{ID: "n1", Surface: "שלום"},
		{ID: "n2", Surface: "חי"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	edge, ok := st.edges[[2]string{"n1", "n2"}]
	if !ok {
		t.Fatalf("expected edge n1-n2, stored edges: %v", st.edges)
	}
	if edge.Classification != common.EdgeWeak {
		t.Errorf("expected weak classification, got %q", edge.Classification)
	}
	if edge.Strength < 0.79 || edge.Strength > 0.81 {
		t.Errorf("expected strength ~0.80, got %v", edge.Strength)
	}
	if edge.RerankModel != "fake-reranker" {
		t.Errorf("expected rerank model recorded, got %q", edge.RerankModel)
	}
	if summary.EdgesWeak != 1 || summary.EdgesStrong != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestAggregateStrongEdgeAndDiscard(t *testing.T) {
	cfg := testConfig()
	st := newFakeStore()
	st.neighborsOf["n1"] = []store.Neighbor{
		{NounID: "n2", Cosine: 0.95},
		{NounID: "n3", Cosine: 0.60},
	}

	docN2 := BuildDocument(common.Noun{ID: "n2", Surface: "חי"})
	docN3 := BuildDocument(common.Noun{ID: "n3", Surface: "אור"})
	reranker := &fakeReranker{scores: map[string]float32{docN2: 0.92, docN3: 0.55}}
	agg := New(cfg, &fakeEmbedder{dim: cfg.EmbedDim}, reranker, st)

	summary, err := agg.Aggregate(context.Background(), "run-1", []common.Noun{
		{ID: "n1", Surface: "שלום"},
		{ID: "n2", Surface: "חי"},
		{ID: "n3", Surface: "אור"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	edge, ok := st.edges[[2]string{"n1", "n2"}]
	if !ok {
		t.Fatalf("expected strong edge n1-n2")
	}
	if edge.Classification != common.EdgeStrong {
		t.Errorf("expected strong classification, got %q", edge.Classification)
	}
	// 0.5*0.60 + 0.5*0.55 = 0.575, below the weak threshold.
	if _, ok := st.edges[[2]string{"n1", "n3"}]; ok {
		t.Errorf("expected n1-n3 to be discarded")
	}
	if summary.EdgesStrong != 1 || summary.EdgesDiscarded != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestAggregateRerankFailureSkipsOnlyThatNode(t *testing.T) {
	cfg := testConfig()
	st := newFakeStore()
	st.neighborsOf["n1"] = []store.Neighbor{{NounID: "n2", Cosine: 0.95}}
	st.neighborsOf["n3"] = []store.Neighbor{{NounID: "n2", Cosine: 0.93}}

	nouns := []common.Noun{
		{ID: "n1", Surface: "שלום"},
		{ID: "n2", Surface: "חי"},
		{ID: "n3", Surface: "אור"},
	}
	docN2 := BuildDocument(nouns[1])
	reranker := &fakeReranker{
		scores:  map[string]float32{docN2: 0.95},
		failFor: map[string]bool{BuildDocument(nouns[0]): true},
	}
	agg := New(cfg, &fakeEmbedder{dim: cfg.EmbedDim}, reranker, st)

	summary, err := agg.Aggregate(context.Background(), "run-1", nouns)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if summary.NodesSkipped != 1 {
		t.Errorf("expected 1 skipped node, got %d", summary.NodesSkipped)
	}
	if _, ok := st.edges[[2]string{"n2", "n3"}]; !ok {
		t.Errorf("expected n2-n3 edge from the surviving node")
	}
}

func TestAggregateIdempotent(t *testing.T) {
	cfg := testConfig()
	st := newFakeStore()
	st.neighborsOf["n1"] = []store.Neighbor{{NounID: "n2", Cosine: 0.95}}
	st.neighborsOf["n2"] = []store.Neighbor{{NounID: "n1", Cosine: 0.95}}

	nouns := []common.Noun{
		{ID: "n1", Surface: "שלום"},
		{ID: "n2", Surface: "חי"},
	}
	reranker := &fakeReranker{scores: map[string]float32{
		BuildDocument(nouns[0]): 0.95,
		BuildDocument(nouns[1]): 0.95,
	}}
	agg := New(cfg, &fakeEmbedder{dim: cfg.EmbedDim}, reranker, st)

	for run := 0; run < 2; run++ {
		if _, err := agg.Aggregate(context.Background(), "run-1", nouns); err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
	}

	// Mirror pairs collapse onto one ordered edge, and re-running must not
	// grow the stored set.
	if len(st.edges) != 1 {
		t.Fatalf("expected exactly 1 stored edge, got %d", len(st.edges))
	}
	if _, ok := st.edges[[2]string{"n1", "n2"}]; !ok {
		t.Errorf("expected canonical edge n1-n2")
	}
}

func TestAggregateNeighborOutsideRunSkipped(t *testing.T) {
	cfg := testConfig()
	st := newFakeStore()
	st.neighborsOf["n1"] = []store.Neighbor{{NounID: "old-node", Cosine: 0.99}}

	agg := New(cfg, &fakeEmbedder{dim: cfg.EmbedDim}, &fakeReranker{}, st)
	summary, err := agg.Aggregate(context.Background(), "run-1", []common.Noun{
		{ID: "n1", Surface: "שלום"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(st.edges) != 0 {
		t.Errorf("expected no edges for out-of-run neighbor, got %v", st.edges)
	}
	if summary.NodesUpserted != 1 {
		t.Errorf("expected node still upserted, got %+v", summary)
	}
}

func TestAggregateEmbeddingChunkFailureSkipsNoun(t *testing.T) {
	cfg := testConfig()
	cfg.EmbedBatchSize = 1
	st := newFakeStore()

	embedder := &fakeEmbedder{dim: cfg.EmbedDim, failFor: "אור"}
	agg := New(cfg, embedder, &fakeReranker{}, st)

	summary, err := agg.Aggregate(context.Background(), "run-1", []common.Noun{
		{ID: "n1", Surface: "שלום"},
		{ID: "n2", Surface: "אור"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if summary.NodesUpserted != 1 || summary.NodesSkipped != 1 {
		t.Errorf("expected 1 upserted and 1 skipped, got %+v", summary)
	}
	if _, ok := st.nodes["n2"]; ok {
		t.Errorf("failed noun must not be persisted")
	}
	if summary.EmbeddingCalls != 2 {
		t.Errorf("expected 2 embedding calls, got %d", summary.EmbeddingCalls)
	}
}

func TestAggregateAllEmbeddingChunksFailedFatal(t *testing.T) {
	cfg := testConfig()
	st := newFakeStore()

	embedder := &fakeEmbedder{dim: cfg.EmbedDim, failFor: "שלום"}
	agg := New(cfg, embedder, &fakeReranker{}, st)

	_, err := agg.Aggregate(context.Background(), "run-1", []common.Noun{
		{ID: "n1", Surface: "שלום"},
	})
	if _, ok := err.(*AggregationError); !ok {
		t.Fatalf("expected AggregationError, got %v", err)
	}
	if st.nodeUpserts != 0 {
		t.Errorf("nothing must be persisted when no document embeds")
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	st := newFakeStore()
	agg := New(testConfig(), &fakeEmbedder{dim: 8}, &fakeReranker{}, st)
	summary, err := agg.Aggregate(context.Background(), "run-1", nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if summary.NodesUpserted != 0 || st.nodeUpserts != 0 {
		t.Errorf("expected nothing done for empty input")
	}
}

func TestL2Normalize(t *testing.T) {
	v := l2Normalize([]float32{3, 4})
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("l2Normalize([3 4]) = %v, want [0.6 0.8]", v)
	}
	zero := l2Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector must stay zero, got %v", zero)
	}
}
