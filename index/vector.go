package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragbot/model"
	"ragbot/store"
	"ragbot/types"
)

// indexAllConcurrency bounds how many documents are embedded in parallel
// during catch-up. Chunks within one document stay sequential.
const indexAllConcurrency = 4

// Vector ranks chunks by cosine similarity between the query embedding and
// the chunk embeddings persisted through the store (pgvector).
type Vector struct {
	db       store.DBStorer
	embedder model.EmbedderInterface

	mu      sync.RWMutex
	indexed map[uuid.UUID]struct{}
}

func NewVector(db store.DBStorer, embedder model.EmbedderInterface) *Vector {
	return &Vector{
		db:       db,
		embedder: embedder,
		indexed:  make(map[uuid.UUID]struct{}),
	}
}

func (v *Vector) Name() string { return "vector" }

// IndexDocument embeds each chunk and writes the embedding plus its artifact
// reference, one chunk at a time so no reader observes a half-written chunk.
func (v *Vector) IndexDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	if v.embedder == nil {
		return types.IndexUnavailableError{Index: v.Name(), Err: fmt.Errorf("no embedding capability configured")}
	}

	for _, c := range chunks {
		if c.EmbeddingRef != "" {
			continue
		}
		embedding, err := v.embedder.Embed(ctx, c.Content)
		if err != nil {
			return types.EmbeddingError{Err: fmt.Errorf("chunk %d of document %s: %w", c.Index, doc.ID, err)}
		}
		ref := fmt.Sprintf("embeddings/%s/%s.vec", doc.ID, c.ID)
		if err := v.db.SetChunkEmbedding(ctx, c.ID, ref, embedding); err != nil {
			return types.EmbeddingError{Err: fmt.Errorf("store embedding for chunk %d: %w", c.Index, err)}
		}
	}

	v.mu.Lock()
	v.indexed[doc.ID] = struct{}{}
	v.mu.Unlock()
	return nil
}

func (v *Vector) IndexAll(ctx context.Context) error {
	docs, err := v.db.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return types.IndexUnavailableError{Index: v.Name(), Err: err}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(indexAllConcurrency)

	for _, doc := range docs {
		v.mu.RLock()
		_, done := v.indexed[doc.ID]
		v.mu.RUnlock()
		if done {
			continue
		}
		doc := doc
		g.Go(func() error {
			chunks, err := v.db.GetChunksByDocID(ctx, doc.ID)
			if err != nil {
				return types.IndexUnavailableError{Index: v.Name(), Err: err}
			}
			return v.IndexDocument(ctx, doc, chunks)
		})
	}
	return g.Wait()
}

func (v *Vector) Search(ctx context.Context, query string, limit int) ([]types.RetrievalResult, error) {
	return searchWithCatchUp(ctx,
		func(ctx context.Context) ([]types.RetrievalResult, error) {
			return v.search(ctx, query, limit)
		},
		v.stale,
		v.IndexAll,
	)
}

func (v *Vector) search(ctx context.Context, query string, limit int) ([]types.RetrievalResult, error) {
	if v.embedder == nil {
		return nil, types.IndexUnavailableError{Index: v.Name(), Err: fmt.Errorf("no embedding capability configured")}
	}

	embedding, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.IndexUnavailableError{Index: v.Name(), Err: err}
	}

	results, err := v.db.VectorSearch(ctx, embedding, limit)
	if err != nil {
		return nil, types.IndexUnavailableError{Index: v.Name(), Err: err}
	}
	return results, nil
}

func (v *Vector) stale(ctx context.Context) bool {
	docs, err := v.db.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, doc := range docs {
		if _, ok := v.indexed[doc.ID]; !ok {
			return true
		}
	}
	return false
}
