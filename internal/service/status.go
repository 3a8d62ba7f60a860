package service

import (
	"time"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
)

// PromptDetails exposes how a painting's prompt was put together.
type PromptDetails struct {
	Summary         string   `json:"summary"`
	Title           string   `json:"title"`
	Instructions    string   `json:"instructions"`
	ReferenceCount  int      `json:"referenceCount"`
	ReferenceImages []string `json:"referenceImages"`
	FullPrompt      string   `json:"fullPrompt"`
}

// PaintingView is one painting as served to polling clients.
type PaintingView struct {
	ID            string        `json:"id"`
	TitleID       string        `json:"title_id"`
	IdeaID        string        `json:"idea_id"`
	ImageURL      string        `json:"image_url"`
	ImageData     string        `json:"image_data"`
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message"`
	CreatedAt     time.Time     `json:"created_at"`
	Summary       string        `json:"summary"`
	FullPrompt    string        `json:"fullPrompt"`
	PromptDetails PromptDetails `json:"promptDetails"`
}

// StatusResponse is the polling payload for one title: every painting
// newest-first, plus a shared lookup of reference image payloads so each
// reference travels once no matter how many paintings used it.
type StatusResponse struct {
	Paintings        []PaintingView    `json:"paintings"`
	ReferenceDataMap map[string]string `json:"referenceDataMap"`
}

// StatusService assembles the polling snapshot. Read-only; safe to call at
// any point of a running batch.
type StatusService struct {
	titles     repository.TitleRepository
	paintings  repository.PaintingRepository
	references repository.ReferenceRepository
}

func NewStatusService(
	titles repository.TitleRepository,
	paintings repository.PaintingRepository,
	references repository.ReferenceRepository,
) *StatusService {
	return &StatusService{titles: titles, paintings: paintings, references: references}
}

func (s *StatusService) Status(userID, titleID string) (*StatusResponse, error) {
	// Ownership gate. Repositories below query by title id alone.
	_, err := s.titles.ByID(userID, titleID)
	if err != nil {
		return nil, err
	}

	rows, err := s.paintings.ForTitle(titleID)
	if err != nil {
		return nil, err
	}

	// Collect every referenced image id across the whole response, then load
	// the payloads in one query.
	seen := map[string]bool{}
	var refIDs []string
	for _, row := range rows {
		for _, id := range row.UsedReferences() {
			if !seen[id] {
				seen[id] = true
				refIDs = append(refIDs, id)
			}
		}
	}

	refData, err := s.references.ByIDs(refIDs)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{
		Paintings:        make([]PaintingView, 0, len(rows)),
		ReferenceDataMap: refData,
	}
	for _, row := range rows {
		resp.Paintings = append(resp.Paintings, buildView(row))
	}

	return resp, nil
}

func buildView(row *repository.PaintingRow) PaintingView {
	summary := model.PlaceholderSummary
	if row.Summary != nil && *row.Summary != "" {
		summary = *row.Summary
	}

	fullPrompt := ""
	if row.FullPrompt != nil {
		fullPrompt = *row.FullPrompt
	}

	ideaID := ""
	if row.IdeaID != nil {
		ideaID = *row.IdeaID
	}

	instructions := "No custom instructions provided"
	if row.TitleInstructions != nil && *row.TitleInstructions != "" {
		instructions = *row.TitleInstructions
	}

	usedRefs := row.UsedReferences()
	if usedRefs == nil {
		usedRefs = []string{}
	}

	return PaintingView{
		ID:           row.ID,
		TitleID:      row.TitleID,
		IdeaID:       ideaID,
		ImageURL:     row.ImageURL,
		ImageData:    row.ImageData,
		Status:       row.Status,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		Summary:      summary,
		FullPrompt:   fullPrompt,
		PromptDetails: PromptDetails{
			Summary:         summary,
			Title:           row.TitleText,
			Instructions:    instructions,
			ReferenceCount:  len(usedRefs),
			ReferenceImages: usedRefs,
			FullPrompt:      fullPrompt,
		},
	}
}
