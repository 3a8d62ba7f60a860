package model

import (
	"encoding/json"
	"time"
)

// Painting status values. Wire-exact, persisted as-is.
//
//	pending -> creating_prompt -> prompt_ready -> generating_image -> processing -> completed
//	creating_prompt -> failed
//	generating_image -> failed
//
// completed and failed are terminal. A retry resets a failed painting to
// creating_prompt (full regenerate) or generating_image (render-only).
const (
	PaintingStatusPending         = "pending"
	PaintingStatusCreatingPrompt  = "creating_prompt"
	PaintingStatusPromptReady     = "prompt_ready"
	PaintingStatusGeneratingImage = "generating_image"
	PaintingStatusProcessing      = "processing"
	PaintingStatusCompleted       = "completed"
	PaintingStatusFailed          = "failed"
)

// PlaceholderSummary is shown for a painting whose idea does not exist yet.
const PlaceholderSummary = "Generating painting concept..."

type Painting struct {
	ID               string    `db:"id"`
	TitleID          string    `db:"title_id"`
	IdeaID           *string   `db:"idea_id"`
	ImageURL         string    `db:"image_url"`
	ImageData        string    `db:"image_data"`
	Status           string    `db:"status"`
	ErrorMessage     string    `db:"error_message"`
	UsedReferenceIDs *string   `db:"used_reference_ids"` // JSON array of reference image ids
	CreatedAt        time.Time `db:"created_at"`
}

// IsTerminal reports whether the painting has reached a final state.
func (p *Painting) IsTerminal() bool {
	return p.Status == PaintingStatusCompleted || p.Status == PaintingStatusFailed
}

// UsedReferences decodes the persisted reference id list. A missing or
// malformed column yields an empty list, never an error.
func (p *Painting) UsedReferences() []string {
	if p.UsedReferenceIDs == nil || *p.UsedReferenceIDs == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(*p.UsedReferenceIDs), &ids); err != nil {
		return nil
	}
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// EncodeReferenceIDs serializes a reference id list for persistence.
// Returns nil for an empty list so the column stays NULL.
func EncodeReferenceIDs(ids []string) *string {
	if len(ids) == 0 {
		return nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
