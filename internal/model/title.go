package model

import (
	"time"
)

// Title is a named creative project. Deleting a title cascades to its
// ideas, paintings and title-scoped reference images.
type Title struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Title        string    `db:"title"`
	Instructions *string   `db:"instructions"`
	CreatedAt    time.Time `db:"created_at"`
}

// InstructionsOrDefault returns the custom instructions, or a placeholder
// used in prompt details when the user never set any.
func (t *Title) InstructionsOrDefault() string {
	if t.Instructions == nil || *t.Instructions == "" {
		return "No custom instructions provided"
	}
	return *t.Instructions
}
