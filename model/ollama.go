package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ragbot/types"
)

// OllamaConnector talks to the Ollama generate API, batch or streaming.
type OllamaConnector struct {
	apiURL string
	model  string
	client *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

func NewOllamaConnector(apiURL, model string) *OllamaConnector {
	return &OllamaConnector{
		apiURL: apiURL,
		model:  model,
		client: &http.Client{},
	}
}

func (c *OllamaConnector) Generate(ctx context.Context, systemPrompt string, messages []types.ChatMessage) (*GenerateResult, error) {
	resp, err := c.post(ctx, systemPrompt, messages, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return &GenerateResult{Content: genResp.Response, Tokens: genResp.EvalCount}, nil
	}

	// Some deployments stream regardless of the flag; collect the frames.
	var b strings.Builder
	tokens := 0
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk ollamaGenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		b.WriteString(chunk.Response)
		tokens += chunk.EvalCount
	}
	return &GenerateResult{Content: b.String(), Tokens: tokens}, nil
}

func (c *OllamaConnector) GenerateStream(ctx context.Context, systemPrompt string, messages []types.ChatMessage) (<-chan StreamDelta, error) {
	resp, err := c.post(ctx, systemPrompt, messages, true)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamDelta)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for {
			var chunk ollamaGenerateResponse
			if err := decoder.Decode(&chunk); err == io.EOF {
				return
			} else if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- StreamDelta{Err: fmt.Errorf("decode stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- StreamDelta{Content: chunk.Response, Tokens: chunk.EvalCount}:
			case <-ctx.Done():
				return
			}

			if chunk.Done {
				return
			}
		}
	}()
	return out, nil
}

func (c *OllamaConnector) post(ctx context.Context, systemPrompt string, messages []types.ChatMessage, stream bool) (*http.Response, error) {
	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.model,
		System: systemPrompt,
		Prompt: flattenMessages(messages),
		Stream: stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.apiURL, "/") + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(b))
	}
	return resp, nil
}

// flattenMessages renders the conversation as a role-prefixed transcript for
// providers that take a single prompt string.
func flattenMessages(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
