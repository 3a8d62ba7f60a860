package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
)

var (
	ErrInvalidQuantity = errors.New("quantity out of range")
	ErrForbidden       = errors.New("painting belongs to another user")
	// ErrNoIdea rejects a render-only retry on a painting that never got a
	// concept. Use a full regenerate instead.
	ErrNoIdea = errors.New("painting has no idea to render")
)

// maxErrorMessageLen caps persisted error text. Provider errors can embed
// whole response bodies.
const maxErrorMessageLen = 500

// ConceptGenerator produces and persists one idea. Satisfied by
// ConceptService.
type ConceptGenerator interface {
	Generate(ctx context.Context, title *model.Title, prior []*model.Idea, refs []*model.ReferenceImage) (*model.Idea, error)
}

// ImageRenderer executes one render attempt. Satisfied by RenderService.
type ImageRenderer interface {
	Render(ctx context.Context, painting *model.Painting, fullPrompt string, refs []*model.ReferenceImage) error
}

// GenerationConfig tunes the batch pipeline.
type GenerationConfig struct {
	QuantityMin int
	QuantityMax int
	// Concurrency bounds simultaneous render calls within a batch.
	Concurrency int
	// MaxAttempts is the total render attempts per painting, first try
	// included.
	MaxAttempts int
	// BackoffBase scales linearly with the attempt number.
	BackoffBase time.Duration
	// BatchPause separates render waves to stay friendly with provider rate
	// limits.
	BatchPause time.Duration
}

// BatchInfo tracks one in-flight batch for observability.
type BatchInfo struct {
	TitleID   string
	Quantity  int
	StartedAt time.Time

	ConceptsDone atomic.Int32
	RendersDone  atomic.Int32
}

// GenerationService orchestrates the asynchronous painting pipeline: a
// synchronous placeholder insert, then a background batch that generates
// concepts sequentially and renders images with bounded concurrency. Clients
// observe progress by polling the status endpoint; nothing here blocks a
// request beyond the placeholder insert.
type GenerationService struct {
	titles     repository.TitleRepository
	paintings  repository.PaintingRepository
	ideas      repository.IdeaRepository
	references repository.ReferenceRepository
	concepts   ConceptGenerator
	renderer   ImageRenderer
	cfg        GenerationConfig

	// active registers in-flight batches, keyed titleID_startMillis. Entries
	// expire on their own should a batch goroutine die without cleanup.
	active *cache.Cache

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGenerationService(
	titles repository.TitleRepository,
	paintings repository.PaintingRepository,
	ideas repository.IdeaRepository,
	references repository.ReferenceRepository,
	concepts ConceptGenerator,
	renderer ImageRenderer,
	cfg GenerationConfig,
) *GenerationService {
	return &GenerationService{
		titles:     titles,
		paintings:  paintings,
		ideas:      ideas,
		references: references,
		concepts:   concepts,
		renderer:   renderer,
		cfg:        cfg,
		active:     cache.New(30*time.Minute, 10*time.Minute),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start validates the request, inserts one placeholder painting per requested
// item and kicks off the batch in the background. The returned placeholders
// are what the client sees until polling picks up progress.
func (s *GenerationService) Start(ctx context.Context, userID, titleID string, quantity int) ([]*model.Painting, error) {
	if quantity < s.cfg.QuantityMin || quantity > s.cfg.QuantityMax {
		return nil, fmt.Errorf("%w: quantity must be between %d and %d",
			ErrInvalidQuantity, s.cfg.QuantityMin, s.cfg.QuantityMax)
	}

	title, err := s.titles.ByID(userID, titleID)
	if err != nil {
		return nil, err
	}

	refs, err := s.references.ForGeneration(userID, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference images: %w", err)
	}

	prior, err := s.ideas.ForTitle(titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior ideas: %w", err)
	}
	reverseIdeas(prior) // oldest first for the novelty context

	now := time.Now()
	placeholders := make([]*model.Painting, 0, quantity)
	for i := range quantity {
		p := &model.Painting{
			ID:      uuid.New().String(),
			TitleID: titleID,
			Status:  model.PaintingStatusCreatingPrompt,
			// Stagger timestamps so newest-first ordering within the batch
			// is stable.
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		err = s.paintings.Create(p)
		if err != nil {
			// Either the whole placeholder set exists or none of it does.
			for _, created := range placeholders {
				_ = s.paintings.Delete(created.ID)
			}
			return nil, fmt.Errorf("failed to create placeholder paintings: %w", err)
		}
		placeholders = append(placeholders, p)
	}

	go s.runBatch(context.WithoutCancel(ctx), title, refs, prior, placeholders)

	return placeholders, nil
}

// runBatch drives a batch to completion. Phase one generates concepts
// strictly one at a time so every idea can be steered away from the ones
// before it. Phase two renders in waves of cfg.Concurrency with a pause in
// between. A failed item is marked failed and skipped; it never takes the
// batch down with it.
func (s *GenerationService) runBatch(ctx context.Context, title *model.Title, refs []*model.ReferenceImage, prior []*model.Idea, placeholders []*model.Painting) {
	start := time.Now()
	batchID := fmt.Sprintf("%s_%d", title.ID, start.UnixMilli())
	info := &BatchInfo{TitleID: title.ID, Quantity: len(placeholders), StartedAt: start}
	s.active.Set(batchID, info, cache.DefaultExpiration)
	defer s.active.Delete(batchID)

	slog.Info("generation batch started",
		"title_id", title.ID,
		"quantity", len(placeholders),
		"references", len(refs),
	)

	type renderItem struct {
		painting *model.Painting
		idea     *model.Idea
	}

	ready := make([]renderItem, 0, len(placeholders))
	for i, p := range placeholders {
		idea, err := s.concepts.Generate(ctx, title, prior, refs)
		if err != nil {
			slog.Error("concept generation failed",
				"painting_id", p.ID,
				"batch_index", i,
				"error", err,
			)
			_ = s.paintings.MarkFailed(p.ID, truncateError("Failed to generate prompt: ", err))
			continue
		}

		err = s.paintings.AttachIdea(p.ID, idea.ID)
		if err != nil {
			slog.Error("failed to attach idea", "painting_id", p.ID, "idea_id", idea.ID, "error", err)
			_ = s.paintings.MarkFailed(p.ID, truncateError("Failed to save prompt: ", err))
			continue
		}

		prior = append(prior, idea)
		ready = append(ready, renderItem{painting: p, idea: idea})
		info.ConceptsDone.Add(1)
	}

	sem := semaphore.NewWeighted(int64(s.cfg.Concurrency))
	for lo := 0; lo < len(ready); lo += s.cfg.Concurrency {
		hi := min(lo+s.cfg.Concurrency, len(ready))

		var wg sync.WaitGroup
		for _, item := range ready[lo:hi] {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					_ = s.paintings.MarkFailed(item.painting.ID, "canceled before rendering started")
					return
				}
				defer sem.Release(1)
				s.renderWithRetry(ctx, item.painting, item.idea, refs)
				info.RendersDone.Add(1)
			}()
		}
		wg.Wait()

		if hi < len(ready) {
			_ = s.sleep(ctx, s.cfg.BatchPause)
		}
	}

	slog.Info("generation batch finished",
		"title_id", title.ID,
		"quantity", len(placeholders),
		"concepts", info.ConceptsDone.Load(),
		"renders", info.RendersDone.Load(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// renderWithRetry runs render attempts with linear backoff until one succeeds
// or the ceiling is hit, at which point the painting is marked failed.
func (s *GenerationService) renderWithRetry(ctx context.Context, p *model.Painting, idea *model.Idea, refs []*model.ReferenceImage) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.paintings.SetStatus(p.ID, model.PaintingStatusGeneratingImage)
		if err != nil {
			slog.Error("failed to mark painting for rendering", "painting_id", p.ID, "error", err)
			return
		}

		err = s.renderer.Render(ctx, p, idea.FullPrompt, refs)
		if err == nil {
			return
		}

		slog.Warn("render attempt failed",
			"painting_id", p.ID,
			"attempt", attempt,
			"max_attempts", s.cfg.MaxAttempts,
			"error", err,
		)

		if attempt == s.cfg.MaxAttempts {
			_ = s.paintings.MarkFailed(p.ID,
				truncateError(fmt.Sprintf("Failed to generate image after %d attempts: ", s.cfg.MaxAttempts), err))
			return
		}

		err = s.sleep(ctx, time.Duration(attempt)*s.cfg.BackoffBase)
		if err != nil {
			_ = s.paintings.MarkFailed(p.ID, "canceled while waiting to retry")
			return
		}
	}
}

// Regenerate restarts a painting from scratch: a fresh idea with no novelty
// context, then a render. The old idea row stays for history; the painting
// simply points at the new one.
func (s *GenerationService) Regenerate(ctx context.Context, userID, paintingID string) (*model.Painting, error) {
	pw, err := s.ownedPainting(userID, paintingID)
	if err != nil {
		return nil, err
	}

	title, err := s.titles.ByID(userID, pw.TitleID)
	if err != nil {
		return nil, err
	}

	err = s.paintings.ResetForRetry(paintingID, model.PaintingStatusCreatingPrompt)
	if err != nil {
		return nil, err
	}
	pw.Status = model.PaintingStatusCreatingPrompt

	go s.runRegeneration(context.WithoutCancel(ctx), userID, title, &pw.Painting)

	return &pw.Painting, nil
}

func (s *GenerationService) runRegeneration(ctx context.Context, userID string, title *model.Title, p *model.Painting) {
	refs, err := s.references.ForGeneration(userID, title.ID)
	if err != nil {
		slog.Error("failed to load references for regeneration", "painting_id", p.ID, "error", err)
		_ = s.paintings.MarkFailed(p.ID, truncateError("Failed to load reference images: ", err))
		return
	}

	idea, err := s.concepts.Generate(ctx, title, nil, refs)
	if err != nil {
		slog.Error("concept generation failed", "painting_id", p.ID, "error", err)
		_ = s.paintings.MarkFailed(p.ID, truncateError("Failed to generate prompt: ", err))
		return
	}

	err = s.paintings.AttachIdea(p.ID, idea.ID)
	if err != nil {
		slog.Error("failed to attach idea", "painting_id", p.ID, "idea_id", idea.ID, "error", err)
		_ = s.paintings.MarkFailed(p.ID, truncateError("Failed to save prompt: ", err))
		return
	}

	s.renderWithRetry(ctx, p, idea, refs)
}

// RetryImage re-renders a painting with its existing idea. Unlike batch
// renders this takes no semaphore; a single retry should never queue behind
// someone else's batch.
func (s *GenerationService) RetryImage(ctx context.Context, userID, paintingID string) (*model.Painting, error) {
	pw, err := s.ownedPainting(userID, paintingID)
	if err != nil {
		return nil, err
	}
	if pw.IdeaID == nil {
		return nil, ErrNoIdea
	}

	idea, err := s.ideas.ByID(*pw.IdeaID)
	if err != nil {
		return nil, err
	}

	err = s.paintings.ResetForRetry(paintingID, model.PaintingStatusGeneratingImage)
	if err != nil {
		return nil, err
	}
	pw.Status = model.PaintingStatusGeneratingImage

	go func(ctx context.Context) {
		refs, err := s.references.ForGeneration(userID, pw.TitleID)
		if err != nil {
			slog.Error("failed to load references for retry", "painting_id", pw.ID, "error", err)
			refs = nil
		}
		s.renderWithRetry(ctx, &pw.Painting, idea, refs)
	}(context.WithoutCancel(ctx))

	return &pw.Painting, nil
}

// SweepInterrupted fails every painting left non-terminal by a previous
// process. Their batch goroutines are gone; without the sweep they would poll
// as in-progress forever.
func (s *GenerationService) SweepInterrupted() error {
	n, err := s.paintings.FailNonTerminal("Generation was interrupted by a server restart")
	if err != nil {
		return fmt.Errorf("failed to sweep interrupted paintings: %w", err)
	}
	if n > 0 {
		slog.Warn("failed paintings interrupted by restart", "count", n)
	}
	return nil
}

// ActiveBatches snapshots the in-flight batch registry.
func (s *GenerationService) ActiveBatches() []*BatchInfo {
	items := s.active.Items()
	out := make([]*BatchInfo, 0, len(items))
	for _, item := range items {
		if info, ok := item.Object.(*BatchInfo); ok {
			out = append(out, info)
		}
	}
	return out
}

func (s *GenerationService) ownedPainting(userID, paintingID string) (*repository.PaintingWithOwner, error) {
	pw, err := s.paintings.ByIDWithOwner(paintingID)
	if err != nil {
		return nil, err
	}
	if pw.OwnerID != userID {
		return nil, ErrForbidden
	}
	return pw, nil
}

func truncateError(prefix string, err error) string {
	msg := prefix + err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

func reverseIdeas(ideas []*model.Idea) {
	for i, j := 0, len(ideas)-1; i < j; i, j = i+1, j-1 {
		ideas[i], ideas[j] = ideas[j], ideas[i]
	}
}
