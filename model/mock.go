package model

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"

	"ragbot/types"
)

// MockConnector returns canned responses without any network call. It backs
// the "mock" provider for offline runs and the test suites.
type MockConnector struct{}

func NewMockConnector() *MockConnector { return &MockConnector{} }

const (
	mockGreeting = "Hello! How can I assist you today?"
	mockRAG      = "Based on the information provided, the retrieved context answers your question directly."
	mockThinking = "<think>The question needs the retrieved context weighed before answering.</think>After careful consideration, here is the answer."
	mockDefault  = "I do not have enough information to answer that."
)

func (c *MockConnector) Generate(ctx context.Context, systemPrompt string, messages []types.ChatMessage) (*GenerateResult, error) {
	content := selectResponse(lastUserMessage(messages), systemPrompt)
	return &GenerateResult{Content: content}, nil
}

func (c *MockConnector) GenerateStream(ctx context.Context, systemPrompt string, messages []types.ChatMessage) (<-chan StreamDelta, error) {
	content := selectResponse(lastUserMessage(messages), systemPrompt)
	words := strings.SplitAfter(content, " ")

	out := make(chan StreamDelta)
	go func() {
		defer close(out)
		for _, w := range words {
			select {
			case out <- StreamDelta{Content: w}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func lastUserMessage(messages []types.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func selectResponse(userMessage, systemPrompt string) string {
	hasContext := strings.Contains(strings.ToLower(systemPrompt), "relevant information")

	switch {
	case hasAnyWord(userMessage, "think", "reasoning"):
		return mockThinking
	case hasAnyWord(userMessage, "hello", "hi", "hey"):
		return mockGreeting
	case hasContext || hasAnyWord(userMessage, "document", "documents"):
		return mockRAG
	default:
		return mockDefault
	}
}

// hasAnyWord matches whole words only, so "hi" does not fire inside "this"
// or "think".
func hasAnyWord(s string, words ...string) bool {
	for _, field := range strings.Fields(strings.ToLower(s)) {
		field = strings.Trim(field, ".,!?;:\"'()")
		for _, w := range words {
			if field == w {
				return true
			}
		}
	}
	return false
}

// MockEmbedder produces a deterministic pseudo-random unit vector per input,
// stable across processes so embeddings are cacheable.
type MockEmbedder struct {
	Dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &MockEmbedder{Dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float64, e.Dimension)
	for i := range vec {
		vec[i] = rng.Float64()*2 - 1
	}
	norm := normalize64(vec)

	out := make([]float32, len(norm))
	for i, v := range norm {
		out[i] = float32(v)
	}
	return out, nil
}
