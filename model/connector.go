package model

import (
	"context"

	"ragbot/types"
)

// GenerateResult is a complete model response. Tokens is zero when the
// provider does not report usage.
type GenerateResult struct {
	Content string
	Tokens  int
}

// StreamDelta is one increment of a streamed model response. A non-nil Err is
// terminal; the producer closes the channel right after sending it.
type StreamDelta struct {
	Content string
	Tokens  int
	Err     error
}

// LLMConnector is the language-model capability consumed by the response
// engine. One implementation per provider, selected by configuration at
// startup.
type LLMConnector interface {
	Generate(ctx context.Context, systemPrompt string, messages []types.ChatMessage) (*GenerateResult, error)
	GenerateStream(ctx context.Context, systemPrompt string, messages []types.ChatMessage) (<-chan StreamDelta, error)
}

// EmbedderInterface is the embedding capability consumed by the vector index.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ScorerInterface is the cross-encoder style relevance scoring capability
// consumed by the reranker. Score returns a value in [0, 1].
type ScorerInterface interface {
	Score(ctx context.Context, query, content string) (float64, error)
}
