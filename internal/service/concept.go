package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/provider"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
)

// styleSubstitutions rewrites style words that fight photographic reference
// matching. Applied to the full prompt only when reference images are in
// play, as a safety net on top of the prompt-level steering.
var styleSubstitutions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\babstract\b`), "realistic"},
	{regexp.MustCompile(`(?i)\bsurreal(ist|istic)?\b`), "lifelike"},
	{regexp.MustCompile(`(?i)\bcartoon(ish)?\b`), "photorealistic"},
	{regexp.MustCompile(`(?i)\banime\b`), "photorealistic"},
	{regexp.MustCompile(`(?i)\bimpressionist(ic)?\b`), "realistic"},
	{regexp.MustCompile(`(?i)\bwatercolou?r\b`), "photographic"},
	{regexp.MustCompile(`(?i)\bsketch(y)?\b`), "detailed photographic"},
	{regexp.MustCompile(`(?i)\bstylized\b`), "naturalistic"},
}

// ConceptService generates one painting idea at a time and persists it.
type ConceptService struct {
	ideas   repository.IdeaRepository
	client  provider.ConceptClient
	timeout time.Duration
}

func NewConceptService(ideas repository.IdeaRepository, client provider.ConceptClient, timeout time.Duration) *ConceptService {
	return &ConceptService{ideas: ideas, client: client, timeout: timeout}
}

// Generate asks the concept provider for a fresh idea for the title, steered
// away from the prior ideas, and stores it. prior must be oldest-first so the
// provider sees the batch unfold in order.
func (s *ConceptService) Generate(ctx context.Context, title *model.Title, prior []*model.Idea, refs []*model.ReferenceImage) (*model.Idea, error) {
	req := provider.ConceptRequest{
		TitleText:      title.Title,
		Instructions:   instructionsForConcept(title, len(refs) > 0),
		PriorSummaries: make([]string, 0, len(prior)),
	}
	for _, p := range prior {
		req.PriorSummaries = append(req.PriorSummaries, p.Summary)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	concept, err := s.client.GenerateConcept(cctx, req)
	if err != nil {
		return nil, err
	}
	if concept.Summary == "" || concept.FullPrompt == "" {
		return nil, &provider.Error{Provider: "concept", Message: "provider returned an empty idea"}
	}

	fullPrompt := concept.FullPrompt
	if len(refs) > 0 {
		fullPrompt = enforceRealisticStyle(fullPrompt)
	}

	idea := &model.Idea{
		ID:         uuid.New().String(),
		TitleID:    title.ID,
		Summary:    concept.Summary,
		FullPrompt: fullPrompt,
		CreatedAt:  time.Now(),
	}

	err = s.ideas.Create(idea)
	if err != nil {
		return nil, fmt.Errorf("failed to store idea: %w", err)
	}

	return idea, nil
}

// instructionsForConcept combines the user's custom instructions with the
// style constraint that keeps prompts compatible with photographic reference
// images.
func instructionsForConcept(title *model.Title, hasReferences bool) string {
	instructions := ""
	if title.Instructions != nil {
		instructions = *title.Instructions
	}
	if !hasReferences {
		return instructions
	}

	steering := "Reference photos of the real subject will be supplied to the image model. " +
		"Describe a realistic, photographic scene. Do not use abstract, surreal, cartoon or otherwise non-representational styles."
	if instructions == "" {
		return steering
	}
	return instructions + "\n\n" + steering
}

func enforceRealisticStyle(prompt string) string {
	for _, sub := range styleSubstitutions {
		prompt = sub.pattern.ReplaceAllString(prompt, sub.replacement)
	}
	return prompt
}
