package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
)

var (
	ErrTitleNotFound = errors.New("title not found")
)

type TitleRepository interface {
	Create(title *model.Title) error
	ByID(userID, titleID string) (*model.Title, error)
	Titles(userID string) ([]*model.Title, error)
	Update(title *model.Title) error
	Delete(userID, titleID string) error
}

type titleRepository struct {
	db *sqlx.DB
}

func NewTitleRepository(db *sqlx.DB) TitleRepository {
	return &titleRepository{db: db}
}

func (r *titleRepository) Create(title *model.Title) error {
	query := `INSERT INTO titles (id, user_id, title, instructions, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(query,
		title.ID,
		title.UserID,
		title.Title,
		title.Instructions,
		title.CreatedAt,
	)

	return err
}

func (r *titleRepository) ByID(userID, titleID string) (*model.Title, error) {
	title := &model.Title{}
	query := `SELECT * FROM titles WHERE id = $1 AND user_id = $2`

	err := r.db.Get(title, query, titleID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrTitleNotFound
	}

	return title, err
}

func (r *titleRepository) Titles(userID string) ([]*model.Title, error) {
	var titles []*model.Title
	query := `SELECT * FROM titles WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&titles, query, userID)
	if err != nil {
		return nil, err
	}

	return titles, nil
}

func (r *titleRepository) Update(title *model.Title) error {
	query := `UPDATE titles SET title = $1, instructions = $2 WHERE id = $3 AND user_id = $4`

	result, err := r.db.Exec(query, title.Title, title.Instructions, title.ID, title.UserID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrTitleNotFound
	}

	return nil
}

func (r *titleRepository) Delete(userID, titleID string) error {
	// Cascades to ideas, paintings and title-scoped references via FK.
	query := `DELETE FROM titles WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(query, titleID, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrTitleNotFound
	}

	return nil
}
