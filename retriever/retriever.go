package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"ragbot/index"
	"ragbot/store"
	"ragbot/types"
)

const DefaultLimit = 5

// Options select which retrieval paths run for a single search call.
// Hybrid combines the lexical and vector indexes; Graph mixes in chunks
// reached through the knowledge graph; Reranking rescores the merged set.
type Options struct {
	Limit     int
	Hybrid    bool
	Graph     bool
	Reranking bool
}

// HybridRetriever fans a query out across the configured indexes, fuses the
// result sets by chunk identity and hands the merged list to the reranker.
type HybridRetriever struct {
	db       store.DBStorer
	lexical  index.Store
	vector   index.Store
	graph    index.Store
	reranker *Reranker
	logger   *slog.Logger
}

func New(db store.DBStorer, lexical, vector, graph index.Store, reranker *Reranker) *HybridRetriever {
	return &HybridRetriever{
		db:       db,
		lexical:  lexical,
		vector:   vector,
		graph:    graph,
		reranker: reranker,
		logger:   slog.Default().With("service", "retriever"),
	}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, query string, opts Options) ([]types.RetrievalResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	if r.db != nil {
		n, err := r.db.CountChunks(ctx)
		if err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
		if n == 0 {
			r.logger.Info("no documents ingested, returning placeholder results")
			return placeholderResults(query, opts.Limit), nil
		}
	}

	results, err := r.gather(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if opts.Graph && r.graph != nil {
		graphHits, err := r.graph.Search(ctx, query, opts.Limit)
		if err != nil {
			r.logger.Warn("graph search failed", "error", err)
		} else {
			results = mergeGraph(results, graphHits)
		}
	}

	if opts.Reranking && r.reranker != nil {
		return r.reranker.Rerank(ctx, query, results, opts.Limit), nil
	}

	sortByRelevance(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// gather runs the primary indexes. In hybrid mode both indexes get an
// over-fetch budget of twice the final limit so fusion has enough overlap
// to work with.
func (r *HybridRetriever) gather(ctx context.Context, query string, opts Options) ([]types.RetrievalResult, error) {
	if !opts.Hybrid {
		hits, err := r.lexical.Search(ctx, query, opts.Limit)
		if err != nil {
			return nil, fmt.Errorf("lexical search: %w", err)
		}
		return hits, nil
	}

	// An unavailable index drops out of the hybrid query; the other side
	// still answers. Only both sides down is fatal.
	fetch := opts.Limit * 2
	var (
		lexHits, vecHits []types.RetrievalResult
		lexDown, vecDown bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.lexical.Search(gctx, query, fetch)
		if err != nil {
			var unavailable types.IndexUnavailableError
			if errors.As(err, &unavailable) {
				r.logger.Warn("lexical index unavailable, continuing vector-only", "error", err)
				lexDown = true
				return nil
			}
			return fmt.Errorf("lexical search: %w", err)
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := r.vector.Search(gctx, query, fetch)
		if err != nil {
			var unavailable types.IndexUnavailableError
			if errors.As(err, &unavailable) {
				r.logger.Warn("vector index unavailable, continuing lexical-only", "error", err)
				vecDown = true
				return nil
			}
			return fmt.Errorf("vector search: %w", err)
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if lexDown && vecDown {
		return nil, types.IndexUnavailableError{Index: "hybrid", Err: errors.New("all indexes unavailable")}
	}

	return fuse(lexHits, vecHits), nil
}

// fuse merges two result sets by chunk identity. A chunk found by both
// indexes keeps a single entry whose relevance is the arithmetic mean of the
// two scores, tagged as hybrid. Discovery order is preserved: lexical hits
// first, then vector-only hits.
func fuse(lexHits, vecHits []types.RetrievalResult) []types.RetrievalResult {
	merged := make([]types.RetrievalResult, len(lexHits))
	copy(merged, lexHits)

	pos := make(map[string]int, len(merged))
	for i, h := range merged {
		pos[h.ChunkID] = i
	}

	for _, h := range vecHits {
		if i, seen := pos[h.ChunkID]; seen {
			merged[i].Relevance = (merged[i].Relevance + h.Relevance) / 2
			merged[i].Source = types.ResultHybrid
			continue
		}
		pos[h.ChunkID] = len(merged)
		merged = append(merged, h)
	}
	return merged
}

// mergeGraph appends graph hits for chunks the primary indexes did not
// already surface. Graph evidence never overrides a primary score.
func mergeGraph(results, graphHits []types.RetrievalResult) []types.RetrievalResult {
	seen := make(map[string]struct{}, len(results))
	for _, h := range results {
		seen[h.ChunkID] = struct{}{}
	}
	for _, h := range graphHits {
		if _, dup := seen[h.ChunkID]; dup {
			continue
		}
		seen[h.ChunkID] = struct{}{}
		results = append(results, h)
	}
	return results
}

// sortByRelevance orders descending by score, keeping discovery order for
// ties.
func sortByRelevance(results []types.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
}

// placeholderResults answers a search over an empty corpus with deterministic
// synthetic entries, so the chat surface keeps working before any ingestion
// has happened.
func placeholderResults(query string, limit int) []types.RetrievalResult {
	if limit > 3 {
		limit = 3
	}
	out := make([]types.RetrievalResult, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, types.RetrievalResult{
			ChunkID:    fmt.Sprintf("placeholder-%d", i+1),
			Content:    fmt.Sprintf("No documents have been ingested yet. Placeholder context %d for query %q.", i+1, query),
			DocumentID: "placeholder",
			Title:      "Getting started",
			Relevance:  0.5,
			Source:     types.ResultHybrid,
		})
	}
	return out
}
