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

type ReferenceHandler struct {
	referenceService *service.ReferenceService
}

func NewReferenceHandler(referenceService *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{
		referenceService: referenceService,
	}
}

type referenceView struct {
	ID        string    `json:"id"`
	TitleID   string    `json:"title_id"`
	ImageData string    `json:"image_data"`
	IsGlobal  bool      `json:"is_global"`
	CreatedAt time.Time `json:"created_at"`
}

func newReferenceView(ref *model.ReferenceImage) referenceView {
	titleID := ""
	if ref.TitleID != nil {
		titleID = *ref.TitleID
	}
	return referenceView{
		ID:        ref.ID,
		TitleID:   titleID,
		ImageData: ref.ImageData,
		IsGlobal:  ref.IsGlobal,
		CreatedAt: ref.CreatedAt,
	}
}

func (h *ReferenceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		TitleID   *string `json:"title_id"`
		ImageData string  `json:"image_data"`
		IsGlobal  bool    `json:"is_global"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := h.referenceService.Upload(user.ID, req.TitleID, req.ImageData, req.IsGlobal)
	switch {
	case errors.Is(err, repository.ErrTitleNotFound):
		respondError(w, http.StatusNotFound, "Title not found")
		return
	case errors.Is(err, service.ErrAmbiguousReferenceScope):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		// Validation failures carry user-facing messages.
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, newReferenceView(ref))
}

func (h *ReferenceHandler) ListGlobal(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	refs, err := h.referenceService.Global(user.ID)
	if err != nil {
		slog.Error("failed to list global references", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "Failed to load reference images")
		return
	}

	respondJSON(w, http.StatusOK, newReferenceViews(refs))
}

func (h *ReferenceHandler) ListForTitle(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	titleID := r.PathValue("titleId")

	refs, err := h.referenceService.ForTitle(user.ID, titleID)
	if err != nil {
		slog.Error("failed to list references", "error", err, "user_id", user.ID, "title_id", titleID)
		respondError(w, http.StatusInternalServerError, "Failed to load reference images")
		return
	}

	respondJSON(w, http.StatusOK, newReferenceViews(refs))
}

func (h *ReferenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	refID := r.PathValue("id")

	err := h.referenceService.Delete(user.ID, refID)
	if errors.Is(err, repository.ErrReferenceNotFound) {
		respondError(w, http.StatusNotFound, "Reference image not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete reference", "error", err, "user_id", user.ID, "reference_id", refID)
		respondError(w, http.StatusInternalServerError, "Failed to delete reference image")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearForTitle removes every title-scoped reference at once. This is the
// explicit alternative to replace-on-upload.
func (h *ReferenceHandler) ClearForTitle(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	titleID := r.PathValue("titleId")

	deleted, err := h.referenceService.ClearTitle(user.ID, titleID)
	if errors.Is(err, repository.ErrTitleNotFound) {
		respondError(w, http.StatusNotFound, "Title not found")
		return
	}
	if err != nil {
		slog.Error("failed to clear references", "error", err, "user_id", user.ID, "title_id", titleID)
		respondError(w, http.StatusInternalServerError, "Failed to clear reference images")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func newReferenceViews(refs []*model.ReferenceImage) []referenceView {
	views := make([]referenceView, 0, len(refs))
	for _, ref := range refs {
		views = append(views, newReferenceView(ref))
	}
	return views
}
