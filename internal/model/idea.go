package model

import (
	"time"
)

// Idea is an immutable painting concept. A retry always creates a new Idea,
// it never edits one.
type Idea struct {
	ID         string    `db:"id"`
	TitleID    string    `db:"title_id"`
	Summary    string    `db:"summary"`
	FullPrompt string    `db:"full_prompt"`
	CreatedAt  time.Time `db:"created_at"`
}
