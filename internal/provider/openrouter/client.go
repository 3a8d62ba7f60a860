// Package openrouter calls an OpenRouter-compatible chat-completions API to
// generate painting concepts via a forced function call.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CodeWithJuber/ai-painting-generator/internal/provider"
)

const providerName = "openrouter"

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model      string     `json:"model"`
	Messages   []message  `json:"messages"`
	Tools      []tool     `json:"tools"`
	ToolChoice toolChoice `json:"tool_choice"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// savePaintingIdea is the function the model is forced to call; its arguments
// carry the structured concept.
var ideaTool = tool{
	Type: "function",
	Function: toolFunction{
		Name:        "savePaintingIdea",
		Description: "Save a painting idea",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "A short summary of the painting idea (30-50 words)",
				},
				"fullPrompt": map[string]any{
					"type":        "string",
					"description": "The full prompt to generate this painting image (100-200 words with detailed visual instructions)",
				},
			},
			"required": []string{"summary", "fullPrompt"},
		},
	},
}

func (c *Client) GenerateConcept(ctx context.Context, req provider.ConceptRequest) (*provider.Concept, error) {
	if c.apiKey == "" {
		return nil, &provider.Error{Provider: providerName, Message: "API key is not configured"}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a painting concept for the title: %q.\n", req.TitleText)
	if req.Instructions != "" {
		fmt.Fprintf(&sb, "Custom instructions: %s\n", req.Instructions)
	}
	if len(req.PriorSummaries) > 0 {
		fmt.Fprintf(&sb, "Previous painting ideas: %s\n", strings.Join(req.PriorSummaries, "; "))
	}
	sb.WriteString("Please generate a completely new and different painting idea that hasn't been suggested yet.")

	body := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: "You are a creative painting designer. Generate unique painting concepts that haven't been suggested before."},
			{Role: "user", Content: sb.String()},
		},
		Tools:      []tool{ideaTool},
		ToolChoice: toolChoice{Type: "function", Function: struct {
			Name string `json:"name"`
		}{Name: "savePaintingIdea"}},
	}

	var resp chatResponse
	err := c.post(ctx, "/chat/completions", body, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, &provider.Error{Provider: providerName, Message: "no tool calls in response"}
	}

	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	var idea struct {
		Summary    string `json:"summary"`
		FullPrompt string `json:"fullPrompt"`
	}
	err = json.Unmarshal([]byte(args), &idea)
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Message: "malformed tool call arguments: " + err.Error()}
	}

	if idea.Summary == "" || idea.FullPrompt == "" {
		return nil, &provider.Error{Provider: providerName, Message: "incomplete idea data received"}
	}

	return &provider.Concept{Summary: idea.Summary, FullPrompt: idea.FullPrompt}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &provider.Error{Provider: providerName, Message: "encode request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &provider.Error{Provider: providerName, Message: err.Error()}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &provider.Error{Provider: providerName, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &provider.Error{Provider: providerName, StatusCode: httpResp.StatusCode, Message: "read response: " + err.Error()}
	}

	if httpResp.StatusCode != http.StatusOK {
		slog.Error("concept provider request failed", "status", httpResp.StatusCode, "model", c.model)
		return &provider.Error{Provider: providerName, StatusCode: httpResp.StatusCode, Message: statusMessage(httpResp.StatusCode)}
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return &provider.Error{Provider: providerName, StatusCode: httpResp.StatusCode, Message: "malformed response: " + err.Error()}
	}

	return nil
}

func statusMessage(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "authentication failed, check the API key"
	case http.StatusNotFound:
		return "model not found, it may have been deprecated"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	default:
		return fmt.Sprintf("unexpected status %d", code)
	}
}
