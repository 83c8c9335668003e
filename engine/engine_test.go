package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/model"
	"ragbot/retriever"
	"ragbot/types"
)

type fakeIndex struct {
	results []types.RetrievalResult
}

func (f *fakeIndex) Name() string { return "fake" }

func (f *fakeIndex) IndexDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	return nil
}

func (f *fakeIndex) IndexAll(ctx context.Context) error { return nil }

func (f *fakeIndex) Search(ctx context.Context, query string, limit int) ([]types.RetrievalResult, error) {
	return f.results, nil
}

func newTestAssembler(results []types.RetrievalResult) *ResponseAssembler {
	search := retriever.New(nil, &fakeIndex{results: results}, &fakeIndex{}, nil, nil)
	return New(search, model.NewMockConnector(), retriever.Options{Limit: 5})
}

func contextResults() []types.RetrievalResult {
	return []types.RetrievalResult{
		{
			ChunkID:    "c1",
			Content:    "The install guide covers setup on Linux.",
			DocumentID: "doc-1",
			Title:      "Install Guide",
			Relevance:  0.9,
			Source:     types.ResultLexical,
		},
		{
			ChunkID:    "c2",
			Content:    "A second chunk from the same guide.",
			DocumentID: "doc-1",
			Title:      "Install Guide",
			Relevance:  0.7,
			Source:     types.ResultLexical,
		},
	}
}

func TestRespondStripsThinkingFromContent(t *testing.T) {
	a := newTestAssembler(contextResults())

	res, err := a.Respond(context.Background(), "think about the install steps", nil)
	require.NoError(t, err)

	assert.NotContains(t, res.Content, "<think>")
	assert.NotContains(t, res.Content, "</think>")
	assert.Equal(t, "After careful consideration, here is the answer.", res.Content)
	assert.Contains(t, res.Thinking, "retrieved context")
	assert.Greater(t, res.Tokens, 0)
}

func TestRespondDeduplicatesCitationsByDocument(t *testing.T) {
	a := newTestAssembler(contextResults())

	res, err := a.Respond(context.Background(), "what does the document say", nil)
	require.NoError(t, err)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "doc-1", res.Citations[0].ID)
	assert.Equal(t, "Install Guide", res.Citations[0].Title)
}

func TestRespondStreamEmitsThinkingBeforeAnswer(t *testing.T) {
	a := newTestAssembler(contextResults())

	events, err := a.RespondStream(context.Background(), "think about the install steps", nil)
	require.NoError(t, err)

	var order []types.StreamEventType
	var complete *types.StreamEvent
	var answer strings.Builder
	for ev := range events {
		order = append(order, ev.Type)
		switch ev.Type {
		case types.EventChunk:
			answer.WriteString(ev.Content)
		case types.EventComplete:
			ev := ev
			complete = &ev
		}
	}

	require.NotNil(t, complete)
	assert.Equal(t, types.EventComplete, order[len(order)-1])

	firstChunk, firstThinking := -1, -1
	for i, typ := range order {
		if typ == types.EventChunk && firstChunk == -1 {
			firstChunk = i
		}
		if typ == types.EventThinking && firstThinking == -1 {
			firstThinking = i
		}
	}
	require.GreaterOrEqual(t, firstThinking, 0)
	require.GreaterOrEqual(t, firstChunk, 0)
	assert.Less(t, firstThinking, firstChunk)

	// The chunk events concatenate to the complete event's content.
	assert.Equal(t, complete.Content, strings.TrimSpace(answer.String()))
	assert.NotContains(t, complete.Content, "<think>")
	assert.Contains(t, complete.Thinking, "retrieved context")
	assert.Greater(t, complete.Tokens, 0)
	require.Len(t, complete.Citations, 1)
	assert.Equal(t, "doc-1", complete.Citations[0].ID)
}

func TestRespondStreamSingleCompleteEvent(t *testing.T) {
	a := newTestAssembler(contextResults())

	events, err := a.RespondStream(context.Background(), "hello there", nil)
	require.NoError(t, err)

	completes := 0
	for ev := range events {
		if ev.Type == types.EventComplete {
			completes++
		}
	}
	assert.Equal(t, 1, completes)
}

func TestBuildMessagesBoundsHistory(t *testing.T) {
	var history []types.ChatMessage
	for i := 0; i < 25; i++ {
		history = append(history, types.ChatMessage{Role: types.RoleUser, Content: "older"})
	}
	history = append(history, types.ChatMessage{Role: types.RoleAssistant, Content: "newest"})

	messages := buildMessages("current question", history)

	require.Len(t, messages, maxHistory+1)
	assert.Equal(t, "newest", messages[maxHistory-1].Content)
	assert.Equal(t, "current question", messages[maxHistory].Content)
	assert.Equal(t, types.RoleUser, messages[maxHistory].Role)
}

func TestBuildSystemPromptNumbersContext(t *testing.T) {
	prompt := buildSystemPrompt(contextResults())

	assert.Contains(t, prompt, "### Relevant Information:")
	assert.Contains(t, prompt, "[1] Install Guide")
	assert.Contains(t, prompt, "[2] Install Guide")
	assert.Contains(t, prompt, "The install guide covers setup on Linux.")
}
