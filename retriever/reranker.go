package retriever

import (
	"context"
	"log/slog"
	"sort"

	"ragbot/model"
	"ragbot/types"
)

// Reranker rescores a merged candidate set with a cross-encoder style scorer.
// Scoring failures never lose results: the candidate keeps its pre-rerank
// relevance, and if every call fails the original ordering survives.
type Reranker struct {
	scorer model.ScorerInterface
	logger *slog.Logger
}

func NewReranker(scorer model.ScorerInterface) *Reranker {
	return &Reranker{
		scorer: scorer,
		logger: slog.Default().With("service", "reranker"),
	}
}

func (r *Reranker) Rerank(ctx context.Context, query string, results []types.RetrievalResult, limit int) []types.RetrievalResult {
	if len(results) == 0 {
		return results
	}
	if r.scorer == nil {
		return truncate(results, limit)
	}

	rescored := make([]types.RetrievalResult, len(results))
	copy(rescored, results)

	failed := 0
	for i := range rescored {
		score, err := r.scorer.Score(ctx, query, rescored[i].Content)
		if err != nil {
			failed++
			r.logger.Warn("rerank scoring failed, keeping original relevance",
				"chunk_id", rescored[i].ChunkID, "error", err)
			continue
		}
		rescored[i].Relevance = clamp01(score)
		rescored[i].Source = types.ResultReranked
	}
	if failed == len(rescored) {
		return truncate(results, limit)
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Relevance > rescored[j].Relevance
	})
	if limit > 0 && len(rescored) > limit {
		rescored = rescored[:limit]
	}
	return rescored
}

func truncate(results []types.RetrievalResult, limit int) []types.RetrievalResult {
	out := make([]types.RetrievalResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
