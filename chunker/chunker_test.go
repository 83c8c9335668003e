package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/types"
)

func TestChunkShortTextReturnsSingleChunk(t *testing.T) {
	text := "A short note that easily fits in one chunk."
	chunks := Chunk(text, types.DocTypeText, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkRespectsMaxSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about indexing and retrieval quality. ", i)
	}

	chunks := Chunk(b.String(), types.DocTypeText, 300, 60)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 300, "chunk %d exceeds max size", i)
		assert.NotEmpty(t, strings.TrimSpace(c), "chunk %d is empty", i)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	text := strings.Repeat("Deterministic splitting matters for reindexing. ", 50)

	first := Chunk(text, types.DocTypeText, 250, 50)
	second := Chunk(text, types.DocTypeText, 250, 50)

	assert.Equal(t, first, second)
}

func TestChunkOverlapCarriesTrailingWords(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "word%03d ", i)
	}

	chunks := Chunk(b.String(), types.DocTypeText, 200, 100)
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first starts with the trailing words of the
	// previous one.
	prevWords := strings.Fields(chunks[0])
	seedLen := 100 / avgWordLen
	seed := strings.Join(prevWords[len(prevWords)-seedLen:], " ")
	assert.True(t, strings.HasPrefix(chunks[1], seed),
		"chunk %q does not start with seed %q", chunks[1], seed)
}

func TestChunkMarkdownSplitsOnHeadings(t *testing.T) {
	doc := "# Install\n\n" + strings.Repeat("Install instructions here. ", 10) +
		"\n\n# Usage\n\n" + strings.Repeat("Usage instructions here. ", 10)

	chunks := Chunk(doc, types.DocTypeMarkdown, 300, 0)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Contains(t, chunks[0], "# Install")
	joined := strings.Join(chunks, "\n")
	assert.Contains(t, joined, "# Usage")
}

func TestChunkRSTUnderlineHeadings(t *testing.T) {
	doc := "Install\n=======\n\n" + strings.Repeat("Install instructions here. ", 10) +
		"\n\nUsage\n-----\n\n" + strings.Repeat("Usage instructions here. ", 10)

	chunks := Chunk(doc, types.DocTypeRST, 300, 0)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Contains(t, chunks[0], "Install\n=======")
}

func TestChunkPDFSplitsOnPageMarkers(t *testing.T) {
	doc := "--- Page 1 ---\n" + strings.Repeat("First page content. ", 12) +
		"\n--- Page 2 ---\n" + strings.Repeat("Second page content. ", 12)

	chunks := Chunk(doc, types.DocTypePDF, 300, 0)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Contains(t, chunks[0], "--- Page 1 ---")
	assert.Contains(t, strings.Join(chunks, "\n"), "--- Page 2 ---")
}

func TestChunkOversizedWordIsHardCut(t *testing.T) {
	long := strings.Repeat("x", 950)
	chunks := Chunk("intro "+long+" outro", types.DocTypeText, 400, 0)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 400)
	}
	assert.Contains(t, strings.Join(chunks, ""), "outro")
}

func TestChunkOversizedMultibyteWordStaysWithinByteBudget(t *testing.T) {
	// Cyrillic runes are two bytes each; the budget is in bytes.
	long := strings.Repeat("ж", 600)
	chunks := Chunk(long, types.DocTypeText, 400, 0)

	require.Greater(t, len(chunks), 1)
	var rejoined strings.Builder
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 400)
		assert.True(t, utf8.ValidString(c))
		rejoined.WriteString(c)
	}
	assert.Equal(t, long, rejoined.String())
}

func TestChunkPreservesContentOrder(t *testing.T) {
	var parts []string
	for i := 0; i < 30; i++ {
		parts = append(parts, fmt.Sprintf("Paragraph %02d has some content worth keeping.", i))
	}
	text := strings.Join(parts, "\n\n")

	chunks := Chunk(text, types.DocTypeText, 200, 0)

	joined := strings.Join(chunks, "\n")
	last := -1
	for i := 0; i < 30; i++ {
		pos := strings.Index(joined, fmt.Sprintf("Paragraph %02d", i))
		require.GreaterOrEqual(t, pos, 0, "paragraph %d missing", i)
		assert.Greater(t, pos, last, "paragraph %d out of order", i)
		last = pos
	}
}
