package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ragbot/retriever"
	"ragbot/types"
)

type SearchHandler struct {
	retriever *retriever.HybridRetriever
	defaults  retriever.Options
}

func NewSearchHandler(r *retriever.HybridRetriever, defaults retriever.Options) *SearchHandler {
	return &SearchHandler{
		retriever: r,
		defaults:  defaults,
	}
}

type SearchResponse struct {
	Results   []types.RetrievalResult `json:"results"`
	Count     int                     `json:"count"`
	Timestamp time.Time               `json:"timestamp"`
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.SearchParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	opts := searchOptions(&params, h.defaults)

	results, err := h.retriever.Retrieve(c.Context(), params.Query, opts)
	if err != nil {
		return err
	}

	return c.JSON(&SearchResponse{
		Results:   results,
		Count:     len(results),
		Timestamp: time.Now(),
	})
}

// searchOptions overlays the request on the configured defaults. An omitted
// flag keeps the default; only an explicit true/false overrides it.
func searchOptions(params *types.SearchParams, defaults retriever.Options) retriever.Options {
	opts := defaults
	if params.Limit > 0 {
		opts.Limit = params.Limit
	}
	if params.Hybrid != nil {
		opts.Hybrid = *params.Hybrid
	}
	if params.Graph != nil {
		opts.Graph = *params.Graph
	}
	if params.Reranking != nil {
		opts.Reranking = *params.Reranking
	}
	return opts
}
