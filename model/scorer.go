package model

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"ragbot/types"
)

var scoreRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// OllamaScorer rates (query, passage) pairs with a generation model prompted
// to act as a cross-encoder. The numeric rating is parsed from the reply.
type OllamaScorer struct {
	connector *OllamaConnector
}

func NewOllamaScorer(apiURL, model string) *OllamaScorer {
	return &OllamaScorer{connector: NewOllamaConnector(apiURL, model)}
}

func (s *OllamaScorer) Score(ctx context.Context, query, content string) (float64, error) {
	system := "You are a relevance judge. Reply with a single number from 0 to 10 rating how relevant the passage is to the query. No other text."
	prompt := fmt.Sprintf("Query: %s\n\nPassage:\n%s\n\nRelevance (0-10):", query, content)

	res, err := s.connector.Generate(ctx, system, []types.ChatMessage{
		{Role: types.RoleUser, Content: prompt},
	})
	if err != nil {
		return 0, err
	}

	match := scoreRe.FindString(res.Content)
	if match == "" {
		return 0, fmt.Errorf("no score in reply: %q", res.Content)
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, err
	}
	if v > 10 {
		v = 10
	}
	return v / 10, nil
}
