// Package index holds the retrieval indexes: lexical (BM25), vector
// (pgvector-backed) and graph (derived entity/concept graph). Each index
// ingests chunks per document and answers ranked queries.
package index

import (
	"context"

	"ragbot/types"
)

// Store is one retrieval index. IndexDocument is idempotent: reindexing a
// document replaces its prior entries. Search returns results ordered by
// descending relevance with ties kept in insertion order; "no results" is an
// empty slice, never an error.
type Store interface {
	Name() string
	IndexDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error
	IndexAll(ctx context.Context) error
	Search(ctx context.Context, query string, limit int) ([]types.RetrievalResult, error)
}

// searchWithCatchUp runs search once, and when it comes back empty while
// completed documents are known to be missing from the index, rebuilds and
// retries a single time. Staleness is decided from the tracked document set,
// not from the empty result alone: a legitimately empty result on a fresh
// index stays empty.
func searchWithCatchUp(
	ctx context.Context,
	search func(context.Context) ([]types.RetrievalResult, error),
	stale func(context.Context) bool,
	rebuild func(context.Context) error,
) ([]types.RetrievalResult, error) {
	results, err := search(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 || !stale(ctx) {
		return results, nil
	}
	if err := rebuild(ctx); err != nil {
		return nil, err
	}
	return search(ctx)
}
