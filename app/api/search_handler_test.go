package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragbot/retriever"
	"ragbot/types"
)

func boolPtr(v bool) *bool { return &v }

func TestSearchOptionsOmittedFlagsKeepDefaults(t *testing.T) {
	defaults := retriever.Options{Limit: 5, Hybrid: true, Graph: true, Reranking: true}

	opts := searchOptions(&types.SearchParams{Query: "q"}, defaults)
	assert.Equal(t, defaults, opts)
}

func TestSearchOptionsExplicitFlagsOverrideDefaults(t *testing.T) {
	defaults := retriever.Options{Limit: 5, Hybrid: true, Graph: true, Reranking: true}

	opts := searchOptions(&types.SearchParams{
		Query:     "q",
		Limit:     3,
		Hybrid:    boolPtr(false),
		Graph:     boolPtr(false),
		Reranking: boolPtr(false),
	}, defaults)

	assert.Equal(t, retriever.Options{Limit: 3}, opts)
}
