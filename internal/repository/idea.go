package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
)

var (
	ErrIdeaNotFound = errors.New("idea not found")
)

type IdeaRepository interface {
	Create(idea *model.Idea) error
	ByID(ideaID string) (*model.Idea, error)
	// ForTitle returns ideas newest-first. Used to seed the novelty context
	// of a new generation batch.
	ForTitle(titleID string) ([]*model.Idea, error)
}

type ideaRepository struct {
	db *sqlx.DB
}

func NewIdeaRepository(db *sqlx.DB) IdeaRepository {
	return &ideaRepository{db: db}
}

func (r *ideaRepository) Create(idea *model.Idea) error {
	query := `INSERT INTO ideas (id, title_id, summary, full_prompt, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(query,
		idea.ID,
		idea.TitleID,
		idea.Summary,
		idea.FullPrompt,
		idea.CreatedAt,
	)

	return err
}

func (r *ideaRepository) ByID(ideaID string) (*model.Idea, error) {
	idea := &model.Idea{}
	query := `SELECT * FROM ideas WHERE id = $1`

	err := r.db.Get(idea, query, ideaID)
	if err == sql.ErrNoRows {
		return nil, ErrIdeaNotFound
	}

	return idea, err
}

func (r *ideaRepository) ForTitle(titleID string) ([]*model.Idea, error) {
	var ideas []*model.Idea
	query := `SELECT * FROM ideas WHERE title_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&ideas, query, titleID)
	if err != nil {
		return nil, err
	}

	return ideas, nil
}
