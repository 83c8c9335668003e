package index

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/store"
	"ragbot/types"
)

// stubStore backs index tests with fixed documents and chunks. Methods not
// overridden here are never reached.
type stubStore struct {
	store.DBStorer
	docs        []types.Document
	chunksByDoc map[uuid.UUID][]types.Chunk
	graphDocs   map[uuid.UUID]int
}

func (s *stubStore) ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]types.Document, error) {
	var out []types.Document
	for _, d := range s.docs {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubStore) GetChunksByDocID(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	return s.chunksByDoc[docID], nil
}

func (s *stubStore) ReplaceGraph(ctx context.Context, docID uuid.UUID, nodes []types.GraphNode, edges []types.GraphEdge) error {
	if s.graphDocs == nil {
		s.graphDocs = make(map[uuid.UUID]int)
	}
	s.graphDocs[docID] = len(nodes)
	return nil
}

func makeDoc(title string, contents ...string) (types.Document, []types.Chunk) {
	doc := types.Document{
		ID:        uuid.New(),
		Title:     title,
		DocType:   types.DocTypeText,
		Status:    types.StatusCompleted,
		CreatedAt: time.Now(),
	}
	chunks := make([]types.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = types.Chunk{
			ID:          uuid.New(),
			DocumentID:  doc.ID,
			Content:     c,
			Index:       i,
			TotalChunks: len(contents),
		}
	}
	return doc, chunks
}

func TestLexicalRanksMatchingChunksFirst(t *testing.T) {
	idx := NewLexical(nil)
	doc, chunks := makeDoc("pets",
		"Cats sleep most of the day and hunt at night.",
		"Dogs enjoy long walks and playing fetch.",
		"Goldfish need a clean tank with stable temperature.",
	)
	require.NoError(t, idx.IndexDocument(context.Background(), doc, chunks))

	results, err := idx.Search(context.Background(), "dogs playing fetch", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, chunks[1].ID.String(), results[0].ChunkID)
	assert.Equal(t, types.ResultLexical, results[0].Source)
	assert.InDelta(t, 1.0, results[0].Relevance, 1e-9)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Relevance, 0.0)
		assert.LessOrEqual(t, r.Relevance, 1.0)
	}
}

func TestLexicalNoMatchReturnsEmpty(t *testing.T) {
	idx := NewLexical(nil)
	doc, chunks := makeDoc("pets", "Cats sleep most of the day.")
	require.NoError(t, idx.IndexDocument(context.Background(), doc, chunks))

	results, err := idx.Search(context.Background(), "quantum chromodynamics", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalReindexReplacesPriorEntries(t *testing.T) {
	idx := NewLexical(nil)
	doc, chunks := makeDoc("pets", "Dogs enjoy long walks.")
	require.NoError(t, idx.IndexDocument(context.Background(), doc, chunks))

	updated := []types.Chunk{{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Content:    "Cats prefer napping indoors.",
	}}
	require.NoError(t, idx.IndexDocument(context.Background(), doc, updated))

	stale, err := idx.Search(context.Background(), "dogs walks", 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err := idx.Search(context.Background(), "cats napping", 10)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, updated[0].ID.String(), fresh[0].ChunkID)
}

func TestLexicalHonorsLimit(t *testing.T) {
	idx := NewLexical(nil)
	doc, chunks := makeDoc("notes",
		"indexing notes one", "indexing notes two", "indexing notes three",
		"indexing notes four", "indexing notes five",
	)
	require.NoError(t, idx.IndexDocument(context.Background(), doc, chunks))

	results, err := idx.Search(context.Background(), "indexing notes", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestLexicalCatchUpRebuildsFromStore(t *testing.T) {
	doc, chunks := makeDoc("pets", "Dogs enjoy long walks and playing fetch.")
	db := &stubStore{
		docs:        []types.Document{doc},
		chunksByDoc: map[uuid.UUID][]types.Chunk{doc.ID: chunks},
	}

	idx := NewLexical(db)

	// Nothing indexed in memory yet: the empty result plus a known
	// completed document triggers a rebuild and a second search.
	results, err := idx.Search(context.Background(), "dogs fetch", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[0].ID.String(), results[0].ChunkID)
}

func TestLexicalEmptyResultWithoutStaleDocsStaysEmpty(t *testing.T) {
	doc, chunks := makeDoc("pets", "Cats sleep most of the day.")
	db := &stubStore{
		docs:        []types.Document{doc},
		chunksByDoc: map[uuid.UUID][]types.Chunk{doc.ID: chunks},
	}

	idx := NewLexical(db)
	require.NoError(t, idx.IndexAll(context.Background()))

	// The index is current, so a miss must not trigger another rebuild.
	results, err := idx.Search(context.Background(), "unrelated terms entirely", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
