package model

import (
	"time"
)

// ReferenceImage is either global (TitleID nil, IsGlobal true) and applies to
// all of a user's titles, or scoped to exactly one title. ImageData holds the
// payload as a base64 data URL.
type ReferenceImage struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TitleID   *string   `db:"title_id"`
	ImageData string    `db:"image_data"`
	IsGlobal  bool      `db:"is_global"`
	CreatedAt time.Time `db:"created_at"`
}
