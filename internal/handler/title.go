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

type TitleHandler struct {
	titleService *service.TitleService
}

func NewTitleHandler(titleService *service.TitleService) *TitleHandler {
	return &TitleHandler{
		titleService: titleService,
	}
}

type titleView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTitleView(t *model.Title) titleView {
	instructions := ""
	if t.Instructions != nil {
		instructions = *t.Instructions
	}
	return titleView{
		ID:           t.ID,
		Title:        t.Title,
		Instructions: instructions,
		CreatedAt:    t.CreatedAt,
	}
}

type titleRequest struct {
	Title        string  `json:"title"`
	Instructions *string `json:"instructions"`
}

func (h *TitleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, err := h.titleService.Create(user.ID, req.Title, req.Instructions)
	if errors.Is(err, service.ErrTitleRequired) {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if err != nil {
		slog.Error("failed to create title", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "Failed to create title")
		return
	}

	respondJSON(w, http.StatusCreated, newTitleView(title))
}

func (h *TitleHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	titles, err := h.titleService.Titles(user.ID)
	if err != nil {
		slog.Error("failed to list titles", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "Failed to load titles")
		return
	}

	views := make([]titleView, 0, len(titles))
	for _, t := range titles {
		views = append(views, newTitleView(t))
	}

	respondJSON(w, http.StatusOK, views)
}

func (h *TitleHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	titleID := r.PathValue("id")

	title, err := h.titleService.ByID(user.ID, titleID)
	if errors.Is(err, repository.ErrTitleNotFound) {
		respondError(w, http.StatusNotFound, "Title not found")
		return
	}
	if err != nil {
		slog.Error("failed to get title", "error", err, "user_id", user.ID, "title_id", titleID)
		respondError(w, http.StatusInternalServerError, "Failed to load title")
		return
	}

	respondJSON(w, http.StatusOK, newTitleView(title))
}

func (h *TitleHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	titleID := r.PathValue("id")

	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, err := h.titleService.Update(user.ID, titleID, req.Title, req.Instructions)
	switch {
	case errors.Is(err, service.ErrTitleRequired):
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	case errors.Is(err, repository.ErrTitleNotFound):
		respondError(w, http.StatusNotFound, "Title not found")
		return
	case err != nil:
		slog.Error("failed to update title", "error", err, "user_id", user.ID, "title_id", titleID)
		respondError(w, http.StatusInternalServerError, "Failed to update title")
		return
	}

	respondJSON(w, http.StatusOK, newTitleView(title))
}

func (h *TitleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	titleID := r.PathValue("id")

	err := h.titleService.Delete(user.ID, titleID)
	if errors.Is(err, repository.ErrTitleNotFound) {
		respondError(w, http.StatusNotFound, "Title not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete title", "error", err, "user_id", user.ID, "title_id", titleID)
		respondError(w, http.StatusInternalServerError, "Failed to delete title")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
