package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragbot/model"
	"ragbot/retriever"
	"ragbot/types"
)

// maxHistory bounds how many trailing conversation messages are forwarded to
// the model.
const maxHistory = 10

const systemPromptBase = `You are a helpful assistant that answers questions using the provided context.
Ground every claim in the context below. If the context does not contain the answer, say so instead of guessing.
Answer concisely and cite the numbered sources you relied on.`

// ChatResult is a complete assembled response.
type ChatResult struct {
	Content   string                  `json:"content"`
	Thinking  string                  `json:"thinking,omitempty"`
	Tokens    int                     `json:"tokens"`
	Citations []types.Citation        `json:"citations"`
	Results   []types.RetrievalResult `json:"results,omitempty"`
}

// ResponseAssembler turns a user message into a grounded response: it runs
// retrieval, builds the prompt, calls the model and demultiplexes thinking
// from answer text.
type ResponseAssembler struct {
	retriever *retriever.HybridRetriever
	llm       model.LLMConnector
	opts      retriever.Options
	logger    *slog.Logger
}

func New(r *retriever.HybridRetriever, llm model.LLMConnector, opts retriever.Options) *ResponseAssembler {
	return &ResponseAssembler{
		retriever: r,
		llm:       llm,
		opts:      opts,
		logger:    slog.Default().With("service", "engine"),
	}
}

// Respond produces a complete response in one call.
func (a *ResponseAssembler) Respond(ctx context.Context, message string, history []types.ChatMessage) (*ChatResult, error) {
	results, err := a.retriever.Retrieve(ctx, message, a.opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	res, err := a.llm.Generate(ctx, buildSystemPrompt(results), buildMessages(message, history))
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	content, thinking := splitThinking(res.Content)
	tokens := res.Tokens
	if tokens == 0 {
		tokens = model.CountTokens(content)
	}
	return &ChatResult{
		Content:   content,
		Thinking:  thinking,
		Tokens:    tokens,
		Citations: buildCitations(results),
		Results:   results,
	}, nil
}

// RespondStream produces the response as a stream of events. The channel is
// closed after the single terminal complete event, or as soon as ctx is done.
func (a *ResponseAssembler) RespondStream(ctx context.Context, message string, history []types.ChatMessage) (<-chan types.StreamEvent, error) {
	results, err := a.retriever.Retrieve(ctx, message, a.opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	deltas, err := a.llm.GenerateStream(ctx, buildSystemPrompt(results), buildMessages(message, history))
	if err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}

	events := make(chan types.StreamEvent)
	go a.pump(ctx, deltas, results, events)
	return events, nil
}

func (a *ResponseAssembler) pump(ctx context.Context, deltas <-chan model.StreamDelta, results []types.RetrievalResult, events chan<- types.StreamEvent) {
	defer close(events)

	var demux thinkDemux
	tokens := 0

	emit := func(ev types.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for delta := range deltas {
		if delta.Err != nil {
			a.logger.Error("stream aborted", "error", delta.Err)
			break
		}
		tokens += delta.Tokens
		for _, ev := range demux.Feed(delta.Content) {
			if !emit(ev) {
				return
			}
		}
	}

	tail, content, thinking := demux.Flush()
	for _, ev := range tail {
		if !emit(ev) {
			return
		}
	}
	if tokens == 0 {
		tokens = model.CountTokens(content)
	}
	emit(types.StreamEvent{
		Type:      types.EventComplete,
		Content:   content,
		Thinking:  thinking,
		Tokens:    tokens,
		Citations: buildCitations(results),
	})
}

// buildSystemPrompt appends the retrieved context as a numbered block the
// model can cite by index.
func buildSystemPrompt(results []types.RetrievalResult) string {
	if len(results) == 0 {
		return systemPromptBase
	}
	var b strings.Builder
	b.WriteString(systemPromptBase)
	b.WriteString("\n\n### Relevant Information:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, r.Title, r.Content)
	}
	return b.String()
}

// buildMessages bounds history to the trailing window and appends the current
// user message.
func buildMessages(message string, history []types.ChatMessage) []types.ChatMessage {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	messages := make([]types.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	return append(messages, types.ChatMessage{Role: types.RoleUser, Content: message})
}

// buildCitations lists each source document once, in result order.
func buildCitations(results []types.RetrievalResult) []types.Citation {
	seen := make(map[string]struct{}, len(results))
	citations := make([]types.Citation, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.DocumentID]; dup {
			continue
		}
		seen[r.DocumentID] = struct{}{}
		citations = append(citations, types.Citation{ID: r.DocumentID, Title: r.Title})
	}
	return citations
}
