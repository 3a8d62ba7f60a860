// Package provider holds the boundary types shared by the external AI
// provider clients. The concept provider turns a title into a painting idea;
// the render provider turns a full prompt into an image.
package provider

import (
	"context"
	"fmt"
)

// Error is a failure reported by (or on the way to) an external provider:
// network error, timeout, rate limit, or malformed response. The pipeline
// treats all of them the same for retry purposes.
type Error struct {
	Provider   string
	StatusCode int // 0 when the call never got an HTTP response
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ConceptRequest is the input for one idea-generation call.
type ConceptRequest struct {
	TitleText      string
	Instructions   string
	PriorSummaries []string // summaries of earlier ideas, oldest first, for novelty steering
}

// Concept is one generated painting idea.
type Concept struct {
	Summary    string // short description, roughly 30-50 words
	FullPrompt string // render prompt, roughly 100-200 words
}

// Image is a rendered image returned by the render provider.
type Image struct {
	B64Data  string
	MimeType string
}

// ConceptClient generates painting concepts.
type ConceptClient interface {
	GenerateConcept(ctx context.Context, req ConceptRequest) (*Concept, error)
}

// RenderClient analyzes reference images and renders final images.
type RenderClient interface {
	// AnalyzeReferences describes the subject and style of the given
	// reference images (base64 data URLs) for prompt steering.
	AnalyzeReferences(ctx context.Context, imageDataURLs []string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}
