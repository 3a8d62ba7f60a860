package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
)

var (
	ErrTitleRequired = errors.New("title is required")
)

type TitleService struct {
	repo repository.TitleRepository
}

func NewTitleService(repo repository.TitleRepository) *TitleService {
	return &TitleService{repo: repo}
}

func (s *TitleService) Create(userID, titleText string, instructions *string) (*model.Title, error) {
	titleText = strings.TrimSpace(titleText)
	if titleText == "" {
		return nil, ErrTitleRequired
	}

	title := &model.Title{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        titleText,
		Instructions: instructions,
		CreatedAt:    time.Now(),
	}

	err := s.repo.Create(title)
	if err != nil {
		return nil, fmt.Errorf("failed to create title: %w", err)
	}

	return title, nil
}

func (s *TitleService) ByID(userID, titleID string) (*model.Title, error) {
	return s.repo.ByID(userID, titleID)
}

func (s *TitleService) Titles(userID string) ([]*model.Title, error) {
	return s.repo.Titles(userID)
}

func (s *TitleService) Update(userID, titleID, titleText string, instructions *string) (*model.Title, error) {
	titleText = strings.TrimSpace(titleText)
	if titleText == "" {
		return nil, ErrTitleRequired
	}

	title, err := s.repo.ByID(userID, titleID)
	if err != nil {
		return nil, err
	}

	title.Title = titleText
	title.Instructions = instructions

	err = s.repo.Update(title)
	if err != nil {
		return nil, err
	}

	return title, nil
}

// Delete removes a title. Ideas, paintings and title-scoped references go
// with it via the schema's cascade rules.
func (s *TitleService) Delete(userID, titleID string) error {
	return s.repo.Delete(userID, titleID)
}
