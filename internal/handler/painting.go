package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/CodeWithJuber/ai-painting-generator/internal/ctxkeys"
	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
	"github.com/CodeWithJuber/ai-painting-generator/internal/service"
)

type PaintingHandler struct {
	generationService *service.GenerationService
	statusService     *service.StatusService
}

func NewPaintingHandler(generationService *service.GenerationService, statusService *service.StatusService) *PaintingHandler {
	return &PaintingHandler{
		generationService: generationService,
		statusService:     statusService,
	}
}

// placeholderView is the immediate response to a generate request. The full
// view comes from the status endpoint once polling starts.
type placeholderView struct {
	ID        string    `json:"id"`
	TitleID   string    `json:"title_id"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Generate accepts a batch request, creates the placeholders and returns
// immediately with 202. Progress is observed via the status endpoint.
func (h *PaintingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		TitleID  string `json:"title_id"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	paintings, err := h.generationService.Start(r.Context(), user.ID, req.TitleID, req.Quantity)
	if err != nil {
		h.respondPipelineError(w, err, user.ID)
		return
	}

	views := make([]placeholderView, 0, len(paintings))
	for _, p := range paintings {
		views = append(views, placeholderView{
			ID:        p.ID,
			TitleID:   p.TitleID,
			Status:    p.Status,
			Summary:   model.PlaceholderSummary,
			CreatedAt: p.CreatedAt,
		})
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"paintings": views})
}

// Status serves the polling snapshot for a title.
func (h *PaintingHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	titleID := r.PathValue("titleId")

	resp, err := h.statusService.Status(user.ID, titleID)
	if err != nil {
		h.respondPipelineError(w, err, user.ID)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Regenerate restarts a single painting with a brand new concept.
func (h *PaintingHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	paintingID := r.PathValue("id")

	painting, err := h.generationService.Regenerate(r.Context(), user.ID, paintingID)
	if err != nil {
		h.respondPipelineError(w, err, user.ID)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     painting.ID,
		"status": painting.Status,
	})
}

// RetryImage re-renders a painting while keeping its existing concept.
func (h *PaintingHandler) RetryImage(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	paintingID := r.PathValue("id")

	painting, err := h.generationService.RetryImage(r.Context(), user.ID, paintingID)
	if err != nil {
		h.respondPipelineError(w, err, user.ID)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     painting.ID,
		"status": painting.Status,
	})
}

func (h *PaintingHandler) respondPipelineError(w http.ResponseWriter, err error, userID string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoIdea):
		respondError(w, http.StatusBadRequest, "Painting has no concept yet, use regenerate instead")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "You do not have access to this painting")
	case errors.Is(err, repository.ErrTitleNotFound):
		respondError(w, http.StatusNotFound, "Title not found")
	case errors.Is(err, repository.ErrPaintingNotFound):
		respondError(w, http.StatusNotFound, "Painting not found")
	case errors.Is(err, repository.ErrIdeaNotFound):
		respondError(w, http.StatusNotFound, "Painting concept not found")
	default:
		slog.Error("painting request failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
