package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
	"github.com/CodeWithJuber/ai-painting-generator/internal/validation"
)

var (
	// ErrAmbiguousReferenceScope rejects uploads that are neither clearly
	// global nor clearly scoped to one title.
	ErrAmbiguousReferenceScope = errors.New("reference must be global or belong to exactly one title")
)

type ReferenceService struct {
	refs   repository.ReferenceRepository
	titles repository.TitleRepository
}

func NewReferenceService(refs repository.ReferenceRepository, titles repository.TitleRepository) *ReferenceService {
	return &ReferenceService{refs: refs, titles: titles}
}

// Upload stores a new reference image. Earlier uploads for the same title are
// kept; a title may accumulate several references. Use ClearTitle for the
// explicit replace behavior.
func (s *ReferenceService) Upload(userID string, titleID *string, imageData string, isGlobal bool) (*model.ReferenceImage, error) {
	err := validation.ValidateImageDataURL(imageData)
	if err != nil {
		return nil, err
	}

	// Global and title-scoped are mutually exclusive.
	if isGlobal == (titleID != nil && *titleID != "") {
		return nil, ErrAmbiguousReferenceScope
	}

	if !isGlobal {
		_, err = s.titles.ByID(userID, *titleID)
		if err != nil {
			return nil, err
		}
	} else {
		titleID = nil
	}

	ref := &model.ReferenceImage{
		ID:        uuid.New().String(),
		UserID:    userID,
		TitleID:   titleID,
		ImageData: imageData,
		IsGlobal:  isGlobal,
		CreatedAt: time.Now(),
	}

	err = s.refs.Create(ref)
	if err != nil {
		return nil, err
	}

	return ref, nil
}

func (s *ReferenceService) ForTitle(userID, titleID string) ([]*model.ReferenceImage, error) {
	return s.refs.ForTitle(userID, titleID)
}

func (s *ReferenceService) Global(userID string) ([]*model.ReferenceImage, error) {
	return s.refs.Global(userID)
}

func (s *ReferenceService) Delete(userID, refID string) error {
	return s.refs.Delete(userID, refID)
}

// ClearTitle deletes every title-scoped reference for a title and reports how
// many were removed.
func (s *ReferenceService) ClearTitle(userID, titleID string) (int64, error) {
	_, err := s.titles.ByID(userID, titleID)
	if err != nil {
		return 0, err
	}
	return s.refs.DeleteForTitle(userID, titleID)
}
