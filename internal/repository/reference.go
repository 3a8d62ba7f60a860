package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
)

var (
	ErrReferenceNotFound = errors.New("reference image not found")
)

type ReferenceRepository interface {
	Create(ref *model.ReferenceImage) error
	ByID(userID, refID string) (*model.ReferenceImage, error)
	ForTitle(userID, titleID string) ([]*model.ReferenceImage, error)
	Global(userID string) ([]*model.ReferenceImage, error)
	// ForGeneration returns every reference applicable to a title:
	// title-scoped ones plus the user's global ones.
	ForGeneration(userID, titleID string) ([]*model.ReferenceImage, error)
	// ByIDs batch-loads image payloads for the status endpoint. One query,
	// not one per painting.
	ByIDs(ids []string) (map[string]string, error)
	Delete(userID, refID string) error
	DeleteForTitle(userID, titleID string) (int64, error)
}

type referenceRepository struct {
	db *sqlx.DB
}

func NewReferenceRepository(db *sqlx.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) Create(ref *model.ReferenceImage) error {
	query := `INSERT INTO reference_images (id, user_id, title_id, image_data, is_global, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(query,
		ref.ID,
		ref.UserID,
		ref.TitleID,
		ref.ImageData,
		ref.IsGlobal,
		ref.CreatedAt,
	)

	return err
}

func (r *referenceRepository) ByID(userID, refID string) (*model.ReferenceImage, error) {
	ref := &model.ReferenceImage{}
	query := `SELECT * FROM reference_images WHERE id = $1 AND user_id = $2`

	err := r.db.Get(ref, query, refID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrReferenceNotFound
	}

	return ref, err
}

func (r *referenceRepository) ForTitle(userID, titleID string) ([]*model.ReferenceImage, error) {
	var refs []*model.ReferenceImage
	query := `SELECT * FROM reference_images
	          WHERE title_id = $1 AND user_id = $2 AND is_global = FALSE
	          ORDER BY created_at DESC`

	err := r.db.Select(&refs, query, titleID, userID)
	if err != nil {
		return nil, err
	}

	return refs, nil
}

func (r *referenceRepository) Global(userID string) ([]*model.ReferenceImage, error) {
	var refs []*model.ReferenceImage
	query := `SELECT * FROM reference_images
	          WHERE user_id = $1 AND is_global = TRUE
	          ORDER BY created_at DESC`

	err := r.db.Select(&refs, query, userID)
	if err != nil {
		return nil, err
	}

	return refs, nil
}

func (r *referenceRepository) ForGeneration(userID, titleID string) ([]*model.ReferenceImage, error) {
	var refs []*model.ReferenceImage
	query := `SELECT * FROM reference_images
	          WHERE title_id = $1 OR (user_id = $2 AND is_global = TRUE)
	          ORDER BY created_at ASC`

	err := r.db.Select(&refs, query, titleID, userID)
	if err != nil {
		return nil, err
	}

	return refs, nil
}

func (r *referenceRepository) ByIDs(ids []string) (map[string]string, error) {
	data := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return data, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT id, image_data FROM reference_images WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows := []struct {
		ID        string `db:"id"`
		ImageData string `db:"image_data"`
	}{}
	err := r.db.Select(&rows, query, args...)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		data[row.ID] = row.ImageData
	}

	return data, nil
}

func (r *referenceRepository) Delete(userID, refID string) error {
	query := `DELETE FROM reference_images WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(query, refID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrReferenceNotFound
	}

	return nil
}

func (r *referenceRepository) DeleteForTitle(userID, titleID string) (int64, error) {
	query := `DELETE FROM reference_images WHERE title_id = $1 AND user_id = $2`

	result, err := r.db.Exec(query, titleID, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
