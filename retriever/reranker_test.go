package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/types"
)

type stubScorer struct {
	scores map[string]float64
	err    error
}

func (s *stubScorer) Score(ctx context.Context, query, content string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[content], nil
}

func TestRerankReordersByScore(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"content a": 0.2,
		"content b": 0.9,
	}}
	rr := NewReranker(scorer)

	results := []types.RetrievalResult{
		result("a", 0.9, types.ResultLexical),
		result("b", 0.3, types.ResultLexical),
	}
	reranked := rr.Rerank(context.Background(), "query", results, 5)

	require.Len(t, reranked, 2)
	assert.Equal(t, "b", reranked[0].ChunkID)
	assert.Equal(t, types.ResultReranked, reranked[0].Source)
	assert.InDelta(t, 0.9, reranked[0].Relevance, 1e-9)
}

func TestRerankFallsBackWhenScoringFails(t *testing.T) {
	rr := NewReranker(&stubScorer{err: errors.New("model offline")})

	results := []types.RetrievalResult{
		result("a", 0.9, types.ResultLexical),
		result("b", 0.3, types.ResultLexical),
	}
	reranked := rr.Rerank(context.Background(), "query", results, 5)

	// The pre-rerank ordering survives a total scoring failure.
	require.Len(t, reranked, 2)
	assert.Equal(t, "a", reranked[0].ChunkID)
	assert.Equal(t, types.ResultLexical, reranked[0].Source)
}

func TestRerankTruncatesToLimit(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{
		"content a": 0.1,
		"content b": 0.5,
		"content c": 0.9,
	}}
	rr := NewReranker(scorer)

	results := []types.RetrievalResult{
		result("a", 0.9, types.ResultLexical),
		result("b", 0.8, types.ResultLexical),
		result("c", 0.7, types.ResultLexical),
	}
	reranked := rr.Rerank(context.Background(), "query", results, 2)

	require.Len(t, reranked, 2)
	assert.Equal(t, "c", reranked[0].ChunkID)
	assert.Equal(t, "b", reranked[1].ChunkID)
}

func TestRerankClampsScores(t *testing.T) {
	scorer := &stubScorer{scores: map[string]float64{"content a": 1.7}}
	rr := NewReranker(scorer)

	reranked := rr.Rerank(context.Background(), "query",
		[]types.RetrievalResult{result("a", 0.5, types.ResultLexical)}, 5)

	require.Len(t, reranked, 1)
	assert.Equal(t, 1.0, reranked[0].Relevance)
}

func TestRerankEmptyInput(t *testing.T) {
	rr := NewReranker(&stubScorer{})
	assert.Empty(t, rr.Rerank(context.Background(), "query", nil, 5))
}
