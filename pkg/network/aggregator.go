package network

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seferlab/lexgraph/pkg/ai"
	"github.com/seferlab/lexgraph/pkg/common"
	"github.com/seferlab/lexgraph/pkg/logger"
	"github.com/seferlab/lexgraph/pkg/store"

	"golang.org/x/sync/errgroup"
)

// Aggregator builds the concept network for a validated batch: it embeds
// each noun, recalls nearest neighbors from the stored graph, reranks the
// candidates and persists the blended edges.
type Aggregator struct {
	cfg      Config
	embedder ai.EmbeddingClient
	reranker ai.RerankClient
	store    store.GraphStore
}

func New(cfg Config, embedder ai.EmbeddingClient, reranker ai.RerankClient, st store.GraphStore) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		embedder: embedder,
		reranker: reranker,
		store:    st,
	}
}

// BuildDocument renders a noun into the text that gets embedded and shown to
// the reranker. The surface form leads so that lexically close nouns stay
// close in embedding space.
func BuildDocument(n common.Noun) string {
	var b strings.Builder
	b.WriteString(n.Surface)
	if n.Class != "" {
		b.WriteString("\nclass: " + n.Class)
	}
	if n.GematriaValue != 0 {
		fmt.Fprintf(&b, "\ngematria: %d", n.GematriaValue)
	}
	if n.Insight != "" {
		b.WriteString("\n" + n.Insight)
	}
	if citation := n.PrimaryCitation(); citation != "" {
		b.WriteString("\nsource: " + citation)
	}
	return b.String()
}

// Aggregate runs the full network stage for one batch of validated nouns.
// The embedding dimension is asserted before anything reaches the store: a
// mismatch aborts the run with nothing persisted.
func (a *Aggregator) Aggregate(ctx context.Context, runID string, nouns []common.Noun) (*Summary, error) {
	if len(nouns) == 0 {
		return &Summary{RunID: runID}, nil
	}

	logger.Info("[Network] Aggregating", "run_id", runID, "nouns", len(nouns))

	docs := make([][]byte, len(nouns))
	docByID := make(map[string]string, len(nouns))
	for i, n := range nouns {
		doc := BuildDocument(n)
		docs[i] = []byte(doc)
		docByID[n.ID] = doc
	}

	embeddings, embedCalls, err := a.embedDocuments(ctx, docs)
	if err != nil {
		return nil, &AggregationError{Stage: "embedding", Reason: err.Error()}
	}

	now := time.Now().UTC()
	nodes := make([]common.ConceptNode, 0, len(nouns))
	skipped := 0
	for i, emb := range embeddings {
		if emb == nil {
			// Chunk failure already logged; the noun sits this run out.
			skipped++
			continue
		}
		if len(emb) != a.cfg.EmbedDim {
			return nil, &AggregationError{
				Stage: "embedding",
				Reason: fmt.Sprintf("dimension mismatch for noun %s: got %d, want %d",
					nouns[i].ID, len(emb), a.cfg.EmbedDim),
			}
		}
		nodes = append(nodes, common.ConceptNode{
			NounID:    nouns[i].ID,
			Embedding: l2Normalize(emb),
			UpdatedAt: now,
		})
	}
	if len(nodes) == 0 {
		return nil, &AggregationError{Stage: "embedding", Reason: "no documents embedded"}
	}

	if err := a.store.UpsertNodes(ctx, nodes); err != nil {
		return nil, &AggregationError{Stage: "node upsert", Reason: err.Error()}
	}

	summary := &Summary{
		RunID:          runID,
		NodesUpserted:  len(nodes),
		NodesSkipped:   skipped,
		EmbeddingCalls: embedCalls,
	}
	edgeByPair := make(map[[2]string]common.ConceptEdge)
	var mu sync.Mutex
	var rerankCandidates, rerankHits, discarded int

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.cfg.MaxParallel)
	for i := range nodes {
		node := nodes[i]
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
			}

			neighbors, err := a.store.NearestNeighbors(gCtx, node.NounID, node.Embedding, a.cfg.TopK)
			if err != nil {
				return &AggregationError{Stage: "recall", Reason: err.Error()}
			}

			candidates := make([]store.Neighbor, 0, len(neighbors))
			candidateDocs := make([]string, 0, len(neighbors))
			for _, nb := range neighbors {
				doc, ok := docByID[nb.NounID]
				if !ok {
					// Neighbor predates this run; no document to rerank against.
					continue
				}
				candidates = append(candidates, nb)
				candidateDocs = append(candidateDocs, doc)
			}
			if len(candidates) == 0 {
				return nil
			}

			mu.Lock()
			summary.RerankCalls++
			mu.Unlock()

			scores, err := a.reranker.Rerank(gCtx, docByID[node.NounID], candidateDocs)
			if err != nil {
				logger.Warn("[Network] Rerank failed, skipping node",
					"noun_id", node.NounID, "err", err)
				mu.Lock()
				summary.NodesSkipped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for j, nb := range candidates {
				rerankCandidates++
				rerank := float64(scores[j])
				if rerank >= a.cfg.RerankMinScore {
					rerankHits++
				} else {
					discarded++
					continue
				}

				strength := a.cfg.Blend(nb.Cosine, rerank)
				classification := a.cfg.Classify(strength)
				if classification == "" {
					discarded++
					continue
				}

				pair := edgePair(node.NounID, nb.NounID)
				edgeByPair[pair] = common.ConceptEdge{
					SourceID:       pair[0],
					TargetID:       pair[1],
					Cosine:         nb.Cosine,
					RerankScore:    rerank,
					Strength:       strength,
					Classification: classification,
					RerankModel:    a.reranker.ModelName(),
					UpdatedAt:      now,
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	edges := make([]common.ConceptEdge, 0, len(edgeByPair))
	for _, e := range edgeByPair {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SourceID != edges[j].SourceID {
			return edges[i].SourceID < edges[j].SourceID
		}
		return edges[i].TargetID < edges[j].TargetID
	})

	if err := a.store.UpsertEdges(ctx, edges); err != nil {
		return nil, &AggregationError{Stage: "edge upsert", Reason: err.Error()}
	}

	var totalStrength float64
	for _, e := range edges {
		totalStrength += e.Strength
		switch e.Classification {
		case common.EdgeStrong:
			summary.EdgesStrong++
		case common.EdgeWeak:
			summary.EdgesWeak++
		}
	}
	summary.EdgesDiscarded = discarded
	if len(edges) > 0 {
		summary.MeanEdgeStrength = totalStrength / float64(len(edges))
	}
	if rerankCandidates > 0 {
		summary.RerankHitRate = float64(rerankHits) / float64(rerankCandidates)
		if summary.RerankHitRate < 0.5 {
			logger.Warn("[Network] Low rerank hit rate",
				"run_id", runID, "hit_rate", summary.RerankHitRate)
		}
	}

	logger.Info("[Network] Aggregation finished",
		"run_id", runID,
		"nodes", summary.NodesUpserted,
		"strong", summary.EdgesStrong,
		"weak", summary.EdgesWeak,
		"discarded", summary.EdgesDiscarded)
	return summary, nil
}

// embedDocuments embeds the documents in fixed-size chunks with bounded
// concurrency, preserving input order. A failed chunk leaves nil entries for
// its documents and the run continues; only a fully-failed run is an error
// for the caller to raise.
func (a *Aggregator) embedDocuments(ctx context.Context, docs [][]byte) ([][]float32, int, error) {
	chunkSize := a.cfg.EmbedBatchSize
	if chunkSize <= 0 {
		chunkSize = len(docs)
	}

	out := make([][]float32, len(docs))
	var mu sync.Mutex
	var calls, failed int

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.cfg.MaxParallel)
	for start := 0; start < len(docs); start += chunkSize {
		end := start + chunkSize
		if end > len(docs) {
			end = len(docs)
		}
		s, e := start, end
		eg.Go(func() error {
			embs, err := ai.GenerateEmbeddings(gCtx, a.embedder, docs[s:e])

			mu.Lock()
			defer mu.Unlock()
			calls++
			if err != nil {
				logger.Warn("[Network] Embedding chunk failed, skipping",
					"from", s, "to", e, "err", err)
				failed++
				return nil
			}
			if len(embs) != e-s {
				logger.Warn("[Network] Embedding chunk size mismatch, skipping",
					"got", len(embs), "want", e-s)
				failed++
				return nil
			}
			copy(out[s:e], embs)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, calls, err
	}
	if failed > 0 && failed == calls {
		return nil, calls, fmt.Errorf("all %d embedding chunks failed", calls)
	}
	return out, calls, nil
}

// edgePair orders the two endpoints so that a pair and its mirror land on
// the same stored edge.
func edgePair(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
