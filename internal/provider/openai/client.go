// Package openai calls an OpenAI-compatible API for two things: vision
// analysis of reference images and final image generation.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/CodeWithJuber/ai-painting-generator/internal/provider"
)

const providerName = "openai"

// maxAnalyzedReferences bounds the number of images sent to the vision model.
const maxAnalyzedReferences = 2

type Client struct {
	apiKey      string
	baseURL     string
	visionModel string
	renderModel string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// New builds a client. pacing is the minimum spacing between image-generation
// dispatches, a courtesy to the provider's rate limits; burst matches the
// pipeline's concurrency ceiling so a fresh batch can start without stalling.
func New(apiKey, baseURL, visionModel, renderModel string, pacing time.Duration, burst int) *Client {
	if burst < 1 {
		burst = 1
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		visionModel: visionModel,
		renderModel: renderModel,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(rate.Every(pacing), burst),
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type visionRequest struct {
	Model       string          `json:"model"`
	Messages    []visionMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const analysisInstruction = `You are an expert image analyzer for AI art generation. Analyze these reference images and provide exact specifications for generating similar images.

Answer each section:
1. MAIN SUBJECT: what is the primary subject (person, man, woman, child, animal, object, landscape)? Age and gender if a person. Pose, expression, positioning.
2. VISUAL STYLE & MEDIUM: photography type, art style, quality level.
3. LIGHTING & MOOD: lighting setup, direction and intensity, overall mood.
4. COMPOSITION & FRAMING: camera angle, framing, background treatment.
5. COLOR & TONE: dominant colors, color temperature, contrast level.
6. TECHNICAL STYLE: sharpness, depth of field, special effects or filters.

Describe the subject type first, then the visual style. If it's a man, say "man" clearly. If it's a woman, say "woman" clearly. Be very specific about what the main subject is.`

func (c *Client) AnalyzeReferences(ctx context.Context, imageDataURLs []string) (string, error) {
	if c.apiKey == "" {
		return "", &provider.Error{Provider: providerName, Message: "API key is not configured"}
	}
	if len(imageDataURLs) == 0 {
		return "", &provider.Error{Provider: providerName, Message: "no reference images to analyze"}
	}

	parts := []contentPart{{Type: "text", Text: analysisInstruction}}
	for _, url := range imageDataURLs {
		if len(parts)-1 >= maxAnalyzedReferences {
			break
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: url, Detail: "high"},
		})
	}

	body := visionRequest{
		Model:       c.visionModel,
		Messages:    []visionMessage{{Role: "user", Content: parts}},
		MaxTokens:   1200,
		Temperature: 0.1,
	}

	var resp visionResponse
	err := c.post(ctx, "/chat/completions", body, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &provider.Error{Provider: providerName, Message: "empty analysis response"}
	}

	return resp.Choices[0].Message.Content, nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	Style          string `json:"style"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *Client) GenerateImage(ctx context.Context, prompt string) (*provider.Image, error) {
	if c.apiKey == "" {
		return nil, &provider.Error{Provider: providerName, Message: "API key is not configured"}
	}

	// Wait for a dispatch slot before hitting the provider.
	err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Message: err.Error()}
	}

	body := imageRequest{
		Model:          c.renderModel,
		Prompt:         prompt,
		Size:           "1024x1024",
		Quality:        "hd",
		Style:          "natural",
		N:              1,
		ResponseFormat: "b64_json",
	}

	var resp imageResponse
	err = c.post(ctx, "/images/generations", body, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, &provider.Error{Provider: providerName, Message: "no image data in response"}
	}

	return &provider.Image{B64Data: resp.Data[0].B64JSON, MimeType: "image/png"}, nil
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
		slog.Error("render provider request failed", "status", httpResp.StatusCode, "path", path)
		return &provider.Error{Provider: providerName, StatusCode: httpResp.StatusCode, Message: fmt.Sprintf("unexpected status %d: %s", httpResp.StatusCode, truncateBody(raw))}
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return &provider.Error{Provider: providerName, StatusCode: httpResp.StatusCode, Message: "malformed response: " + err.Error()}
	}

	return nil
}

func truncateBody(b []byte) string {
	const max = 200
	s := string(b)
	if len(s) > max {
		return s[:max]
	}
	return s
}
