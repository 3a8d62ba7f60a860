package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
)

var (
	ErrPaintingNotFound = errors.New("painting not found")
)

// PaintingRow is a painting joined with its idea (nullable) and owning title,
// as served by the status endpoint.
type PaintingRow struct {
	model.Painting
	Summary           *string `db:"summary"`
	FullPrompt        *string `db:"full_prompt"`
	TitleText         string  `db:"title_text"`
	TitleInstructions *string `db:"title_instructions"`
}

// PaintingWithOwner carries the owning user id alongside a painting so
// callers can enforce ownership without a second query.
type PaintingWithOwner struct {
	model.Painting
	OwnerID string `db:"owner_id"`
}

type PaintingRepository interface {
	Create(p *model.Painting) error
	ByID(paintingID string) (*model.Painting, error)
	ByIDWithOwner(paintingID string) (*PaintingWithOwner, error)
	// ForTitle returns paintings for a title newest-first, each joined with
	// its idea and title text.
	ForTitle(titleID string) ([]*PaintingRow, error)
	Delete(paintingID string) error

	// Status transitions. Each mutates exactly one row by primary key.
	SetStatus(paintingID, status string) error
	AttachIdea(paintingID, ideaID string) error
	MarkFailed(paintingID, message string) error
	MarkCompleted(paintingID, imageURL, imageData string, usedReferenceIDs []string) error
	// ResetForRetry clears error and image fields and moves the painting to
	// the given re-entry status (creating_prompt or generating_image).
	ResetForRetry(paintingID, status string) error
	// FailNonTerminal sweeps every non-terminal painting to failed. Used on
	// startup to account for batches interrupted by a process restart.
	FailNonTerminal(message string) (int64, error)
}

type paintingRepository struct {
	db *sqlx.DB
}

func NewPaintingRepository(db *sqlx.DB) PaintingRepository {
	return &paintingRepository{db: db}
}

func (r *paintingRepository) Create(p *model.Painting) error {
	query := `INSERT INTO paintings (id, title_id, idea_id, image_url, image_data, status, error_message, used_reference_ids, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		p.ID,
		p.TitleID,
		p.IdeaID,
		p.ImageURL,
		p.ImageData,
		p.Status,
		p.ErrorMessage,
		p.UsedReferenceIDs,
		p.CreatedAt,
	)

	return err
}

func (r *paintingRepository) ByID(paintingID string) (*model.Painting, error) {
	p := &model.Painting{}
	query := `SELECT * FROM paintings WHERE id = $1`

	err := r.db.Get(p, query, paintingID)
	if err == sql.ErrNoRows {
		return nil, ErrPaintingNotFound
	}

	return p, err
}

func (r *paintingRepository) ByIDWithOwner(paintingID string) (*PaintingWithOwner, error) {
	p := &PaintingWithOwner{}
	query := `SELECT p.*, t.user_id AS owner_id
	          FROM paintings p
	          JOIN titles t ON p.title_id = t.id
	          WHERE p.id = $1`

	err := r.db.Get(p, query, paintingID)
	if err == sql.ErrNoRows {
		return nil, ErrPaintingNotFound
	}

	return p, err
}

func (r *paintingRepository) ForTitle(titleID string) ([]*PaintingRow, error) {
	var rows []*PaintingRow
	query := `SELECT p.*,
	                 i.summary AS summary,
	                 i.full_prompt AS full_prompt,
	                 t.title AS title_text,
	                 t.instructions AS title_instructions
	          FROM paintings p
	          LEFT JOIN ideas i ON p.idea_id = i.id
	          JOIN titles t ON p.title_id = t.id
	          WHERE p.title_id = $1
	          ORDER BY p.created_at DESC, p.id DESC`

	err := r.db.Select(&rows, query, titleID)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *paintingRepository) Delete(paintingID string) error {
	result, err := r.db.Exec(`DELETE FROM paintings WHERE id = $1`, paintingID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrPaintingNotFound
	}

	return nil
}

func (r *paintingRepository) SetStatus(paintingID, status string) error {
	return r.exec(`UPDATE paintings SET status = $1, error_message = '' WHERE id = $2`, status, paintingID)
}

func (r *paintingRepository) AttachIdea(paintingID, ideaID string) error {
	return r.exec(`UPDATE paintings SET idea_id = $1, status = $2 WHERE id = $3`,
		ideaID, model.PaintingStatusPromptReady, paintingID)
}

func (r *paintingRepository) MarkFailed(paintingID, message string) error {
	return r.exec(`UPDATE paintings SET status = $1, error_message = $2 WHERE id = $3`,
		model.PaintingStatusFailed, message, paintingID)
}

func (r *paintingRepository) MarkCompleted(paintingID, imageURL, imageData string, usedReferenceIDs []string) error {
	return r.exec(`UPDATE paintings SET status = $1, image_url = $2, image_data = $3, used_reference_ids = $4, error_message = '' WHERE id = $5`,
		model.PaintingStatusCompleted, imageURL, imageData, model.EncodeReferenceIDs(usedReferenceIDs), paintingID)
}

func (r *paintingRepository) ResetForRetry(paintingID, status string) error {
	return r.exec(`UPDATE paintings SET status = $1, error_message = '', image_url = '', image_data = '', used_reference_ids = NULL WHERE id = $2`,
		status, paintingID)
}

func (r *paintingRepository) FailNonTerminal(message string) (int64, error) {
	result, err := r.db.Exec(`UPDATE paintings SET status = $1, error_message = $2 WHERE status NOT IN ($3, $4)`,
		model.PaintingStatusFailed, message, model.PaintingStatusCompleted, model.PaintingStatusFailed)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *paintingRepository) exec(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrPaintingNotFound
	}

	return nil
}
