package model

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// CountTokens counts tokens with a tiktoken encoding compatible with most chat
// models. When the encoding cannot be loaded (offline cache missing), falls
// back to the word-count heuristic.
func CountTokens(text string) int {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return EstimateTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateTokens approximates token usage as words * 1.3. An approximation,
// not exact; used when the provider reports no usage.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}
