package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/provider"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
	"github.com/CodeWithJuber/ai-painting-generator/internal/storage"
)

// maxRenderPromptLen is the prompt ceiling accepted by the image provider.
const maxRenderPromptLen = 4000

// fallbackAnalysis stands in when reference analysis fails. The render still
// proceeds; the prompt just loses subject-specific detail.
const fallbackAnalysis = "The reference images show the main subject of the painting. " +
	"Match the subject's appearance as closely as the prompt allows."

// RenderService turns a ready idea into a stored image. It owns the
// processing and completed transitions; the caller owns failure handling so
// retries stay in one place.
type RenderService struct {
	paintings      repository.PaintingRepository
	store          storage.ImageStore
	client         provider.RenderClient
	analyzeTimeout time.Duration
	renderTimeout  time.Duration
}

func NewRenderService(
	paintings repository.PaintingRepository,
	store storage.ImageStore,
	client provider.RenderClient,
	analyzeTimeout, renderTimeout time.Duration,
) *RenderService {
	return &RenderService{
		paintings:      paintings,
		store:          store,
		client:         client,
		analyzeTimeout: analyzeTimeout,
		renderTimeout:  renderTimeout,
	}
}

// Render executes one render attempt. On success the painting is completed
// with its image persisted; on error the painting is left in a non-terminal
// state and the error returned for the caller's retry policy.
func (s *RenderService) Render(ctx context.Context, painting *model.Painting, fullPrompt string, refs []*model.ReferenceImage) error {
	// processing means the provider request is in flight.
	err := s.paintings.SetStatus(painting.ID, model.PaintingStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark painting processing: %w", err)
	}

	prompt := fullPrompt
	if len(refs) > 0 {
		analysis := s.analyzeReferences(ctx, painting.ID, refs)
		prompt = subjectMatchedPrompt(fullPrompt, analysis)
	}
	if len(prompt) > maxRenderPromptLen {
		prompt = prompt[:maxRenderPromptLen]
	}

	rctx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	defer cancel()

	img, err := s.client.GenerateImage(rctx, prompt)
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(img.B64Data)
	if err != nil {
		return &provider.Error{Provider: "render", Message: "provider returned invalid image data"}
	}

	name := fmt.Sprintf("paintings/%s_%d.png", painting.ID, time.Now().UnixMilli())
	err = s.store.Save(name, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to store rendered image: %w", err)
	}

	refIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		refIDs = append(refIDs, ref.ID)
	}

	dataURL := "data:image/png;base64," + img.B64Data
	err = s.paintings.MarkCompleted(painting.ID, s.store.URL(name), dataURL, refIDs)
	if err != nil {
		return fmt.Errorf("failed to mark painting completed: %w", err)
	}

	return nil
}

// analyzeReferences describes the reference subject via the vision model.
// Analysis is best effort: any failure falls back to generic text so a flaky
// vision call never costs a render attempt.
func (s *RenderService) analyzeReferences(ctx context.Context, paintingID string, refs []*model.ReferenceImage) string {
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.ImageData)
	}

	actx, cancel := context.WithTimeout(ctx, s.analyzeTimeout)
	defer cancel()

	analysis, err := s.client.AnalyzeReferences(actx, urls)
	if err != nil || analysis == "" {
		slog.Warn("reference analysis failed, using fallback description",
			"painting_id", paintingID,
			"error", err,
		)
		return fallbackAnalysis
	}

	return analysis
}

// subjectMatchedPrompt wraps the idea's prompt with the reference analysis so
// the image model reproduces the real subject instead of inventing one.
func subjectMatchedPrompt(fullPrompt, analysis string) string {
	return "CRITICAL SUBJECT REQUIREMENTS, follow exactly:\n" +
		analysis +
		"\n\nScene to paint with that exact subject:\n" +
		fullPrompt +
		"\n\nThe subject's physical characteristics described above take priority over any conflicting detail in the scene description."
}
