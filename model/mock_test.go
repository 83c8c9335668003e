package model

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/types"
)

func TestMockEmbedderIsDeterministic(t *testing.T) {
	e := NewMockEmbedder(32)

	first, err := e.Embed(context.Background(), "same input")
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), "same input")
	require.NoError(t, err)
	other, err := e.Embed(context.Background(), "different input")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 32)
}

func TestMockEmbedderReturnsUnitVector(t *testing.T) {
	e := NewMockEmbedder(64)

	vec, err := e.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockConnectorSelectsCannedResponses(t *testing.T) {
	c := NewMockConnector()

	res, err := c.Generate(context.Background(), "system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, mockGreeting, res.Content)

	res, err = c.Generate(context.Background(), "system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "think this through"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "<think>")
}

func TestMockConnectorMatchesWholeWordsOnly(t *testing.T) {
	c := NewMockConnector()

	// "this" and "think" both contain "hi"; neither is a greeting.
	res, err := c.Generate(context.Background(), "system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "is this thing on"},
	})
	require.NoError(t, err)
	assert.Equal(t, mockDefault, res.Content)

	res, err = c.Generate(context.Background(), "system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "think about what the document says"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "<think>")

	res, err = c.Generate(context.Background(), "system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "hi!"},
	})
	require.NoError(t, err)
	assert.Equal(t, mockGreeting, res.Content)
}

func TestMockConnectorStreamReassembles(t *testing.T) {
	c := NewMockConnector()

	deltas, err := c.GenerateStream(context.Background(), "system", []types.ChatMessage{
		{Role: types.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)

	var b strings.Builder
	for d := range deltas {
		require.NoError(t, d.Err)
		b.WriteString(d.Content)
	}
	assert.Equal(t, mockGreeting, b.String())
}

func TestCountTokens(t *testing.T) {
	// Holds with a real tiktoken encoding and with the heuristic fallback.
	assert.Equal(t, 0, CountTokens(""))
	assert.Greater(t, CountTokens("a longer sentence with several words in it"), 5)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("one"))
	assert.Equal(t, 13, EstimateTokens(strings.Repeat("word ", 10)))
}
