package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/db"
	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection keeps the in-memory database alive and shared.
	database.SetMaxOpenConns(1)

	err = db.RunMigrations(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

type fixture struct {
	users      UserRepository
	titles     TitleRepository
	references ReferenceRepository
	ideas      IdeaRepository
	paintings  PaintingRepository

	user  *model.User
	title *model.Title
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := newTestDB(t)

	f := &fixture{
		users:      NewUserRepository(database),
		titles:     NewTitleRepository(database),
		references: NewReferenceRepository(database),
		ideas:      NewIdeaRepository(database),
		paintings:  NewPaintingRepository(database),
	}

	f.user = &model.User{
		ID:           uuid.New().String(),
		Username:     "painter",
		Email:        "painter@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	if err := f.users.Create(f.user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	f.title = &model.Title{
		ID:        uuid.New().String(),
		UserID:    f.user.ID,
		Title:     "Sunset over the harbor",
		CreatedAt: time.Now(),
	}
	if err := f.titles.Create(f.title); err != nil {
		t.Fatalf("failed to create title: %v", err)
	}

	return f
}

func (f *fixture) newPainting(t *testing.T, status string, createdAt time.Time) *model.Painting {
	t.Helper()
	p := &model.Painting{
		ID:        uuid.New().String(),
		TitleID:   f.title.ID,
		Status:    status,
		CreatedAt: createdAt,
	}
	if err := f.paintings.Create(p); err != nil {
		t.Fatalf("failed to create painting: %v", err)
	}
	return p
}

func (f *fixture) newIdea(t *testing.T, summary string) *model.Idea {
	t.Helper()
	idea := &model.Idea{
		ID:         uuid.New().String(),
		TitleID:    f.title.ID,
		Summary:    summary,
		FullPrompt: "full prompt for " + summary,
		CreatedAt:  time.Now(),
	}
	if err := f.ideas.Create(idea); err != nil {
		t.Fatalf("failed to create idea: %v", err)
	}
	return idea
}

func TestPaintingStatusTransitions(t *testing.T) {
	f := newFixture(t)
	p := f.newPainting(t, model.PaintingStatusCreatingPrompt, time.Now())
	idea := f.newIdea(t, "a red boat at dusk")

	t.Run("attach idea moves to prompt_ready", func(t *testing.T) {
		if err := f.paintings.AttachIdea(p.ID, idea.ID); err != nil {
			t.Fatalf("AttachIdea: %v", err)
		}
		got, err := f.paintings.ByID(p.ID)
		if err != nil {
			t.Fatalf("ByID: %v", err)
		}
		if got.Status != model.PaintingStatusPromptReady {
			t.Errorf("status = %q, want %q", got.Status, model.PaintingStatusPromptReady)
		}
		if got.IdeaID == nil || *got.IdeaID != idea.ID {
			t.Errorf("idea_id not attached")
		}
	})

	t.Run("set status clears error message", func(t *testing.T) {
		if err := f.paintings.MarkFailed(p.ID, "boom"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
		if err := f.paintings.SetStatus(p.ID, model.PaintingStatusGeneratingImage); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
		got, _ := f.paintings.ByID(p.ID)
		if got.ErrorMessage != "" {
			t.Errorf("error_message = %q, want empty", got.ErrorMessage)
		}
	})

	t.Run("mark completed persists image and references", func(t *testing.T) {
		err := f.paintings.MarkCompleted(p.ID, "http://x/img.png", "data:image/png;base64,AAAA", []string{"ref-1", "ref-2"})
		if err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
		got, _ := f.paintings.ByID(p.ID)
		if got.Status != model.PaintingStatusCompleted {
			t.Errorf("status = %q, want completed", got.Status)
		}
		if got.ImageURL != "http://x/img.png" {
			t.Errorf("image_url = %q", got.ImageURL)
		}
		refs := got.UsedReferences()
		if len(refs) != 2 || refs[0] != "ref-1" || refs[1] != "ref-2" {
			t.Errorf("used references = %v", refs)
		}
	})

	t.Run("reset for retry clears image fields", func(t *testing.T) {
		err := f.paintings.ResetForRetry(p.ID, model.PaintingStatusGeneratingImage)
		if err != nil {
			t.Fatalf("ResetForRetry: %v", err)
		}
		got, _ := f.paintings.ByID(p.ID)
		if got.Status != model.PaintingStatusGeneratingImage {
			t.Errorf("status = %q", got.Status)
		}
		if got.ImageURL != "" || got.ImageData != "" || got.UsedReferenceIDs != nil {
			t.Errorf("image fields not cleared: %+v", got)
		}
		// The idea survives a render-only reset.
		if got.IdeaID == nil {
			t.Errorf("idea_id cleared by reset")
		}
	})
}

func TestPaintingNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.paintings.ByID("missing")
	if !errors.Is(err, ErrPaintingNotFound) {
		t.Errorf("ByID error = %v, want ErrPaintingNotFound", err)
	}

	err = f.paintings.SetStatus("missing", model.PaintingStatusProcessing)
	if !errors.Is(err, ErrPaintingNotFound) {
		t.Errorf("SetStatus error = %v, want ErrPaintingNotFound", err)
	}

	err = f.paintings.Delete("missing")
	if !errors.Is(err, ErrPaintingNotFound) {
		t.Errorf("Delete error = %v, want ErrPaintingNotFound", err)
	}
}

func TestPaintingsForTitle(t *testing.T) {
	f := newFixture(t)

	base := time.Now().Add(-time.Hour)
	oldest := f.newPainting(t, model.PaintingStatusCompleted, base)
	middle := f.newPainting(t, model.PaintingStatusFailed, base.Add(time.Minute))
	newest := f.newPainting(t, model.PaintingStatusCreatingPrompt, base.Add(2*time.Minute))

	idea := f.newIdea(t, "lighthouse in fog")
	if err := f.paintings.AttachIdea(oldest.ID, idea.ID); err != nil {
		t.Fatalf("AttachIdea: %v", err)
	}

	rows, err := f.paintings.ForTitle(f.title.ID)
	if err != nil {
		t.Fatalf("ForTitle: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	if rows[0].ID != newest.ID || rows[1].ID != middle.ID || rows[2].ID != oldest.ID {
		t.Errorf("rows not newest-first: %s %s %s", rows[0].ID, rows[1].ID, rows[2].ID)
	}

	// Joined idea columns are NULL for paintings without a concept.
	if rows[0].Summary != nil {
		t.Errorf("placeholder row has summary %q", *rows[0].Summary)
	}
	if rows[2].Summary == nil || *rows[2].Summary != "lighthouse in fog" {
		t.Errorf("joined summary missing")
	}
	if rows[0].TitleText != f.title.Title {
		t.Errorf("title_text = %q", rows[0].TitleText)
	}
}

func TestFailNonTerminal(t *testing.T) {
	f := newFixture(t)

	f.newPainting(t, model.PaintingStatusCreatingPrompt, time.Now())
	f.newPainting(t, model.PaintingStatusProcessing, time.Now())
	done := f.newPainting(t, model.PaintingStatusCompleted, time.Now())
	failed := f.newPainting(t, model.PaintingStatusFailed, time.Now())

	n, err := f.paintings.FailNonTerminal("interrupted")
	if err != nil {
		t.Fatalf("FailNonTerminal: %v", err)
	}
	if n != 2 {
		t.Errorf("swept %d paintings, want 2", n)
	}

	got, _ := f.paintings.ByID(done.ID)
	if got.Status != model.PaintingStatusCompleted {
		t.Errorf("completed painting was swept")
	}
	got, _ = f.paintings.ByID(failed.ID)
	if got.ErrorMessage != "" {
		t.Errorf("already failed painting got new message %q", got.ErrorMessage)
	}
}

func TestReferenceByIDs(t *testing.T) {
	f := newFixture(t)

	ref1 := &model.ReferenceImage{
		ID:        uuid.New().String(),
		UserID:    f.user.ID,
		TitleID:   &f.title.ID,
		ImageData: "data:image/png;base64,ONE",
		CreatedAt: time.Now(),
	}
	ref2 := &model.ReferenceImage{
		ID:        uuid.New().String(),
		UserID:    f.user.ID,
		ImageData: "data:image/png;base64,TWO",
		IsGlobal:  true,
		CreatedAt: time.Now(),
	}
	for _, ref := range []*model.ReferenceImage{ref1, ref2} {
		if err := f.references.Create(ref); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	t.Run("loads only requested ids", func(t *testing.T) {
		data, err := f.references.ByIDs([]string{ref1.ID, "missing"})
		if err != nil {
			t.Fatalf("ByIDs: %v", err)
		}
		if len(data) != 1 || data[ref1.ID] != ref1.ImageData {
			t.Errorf("data = %v", data)
		}
	})

	t.Run("empty input hits no query", func(t *testing.T) {
		data, err := f.references.ByIDs(nil)
		if err != nil {
			t.Fatalf("ByIDs: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("data = %v, want empty", data)
		}
	})

	t.Run("generation set combines scoped and global", func(t *testing.T) {
		refs, err := f.references.ForGeneration(f.user.ID, f.title.ID)
		if err != nil {
			t.Fatalf("ForGeneration: %v", err)
		}
		if len(refs) != 2 {
			t.Errorf("got %d references, want 2", len(refs))
		}
	})
}

func TestTitleOwnership(t *testing.T) {
	f := newFixture(t)

	stranger := &model.User{
		ID:           uuid.New().String(),
		Username:     "stranger",
		Email:        "stranger@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	if err := f.users.Create(stranger); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	_, err := f.titles.ByID(stranger.ID, f.title.ID)
	if !errors.Is(err, ErrTitleNotFound) {
		t.Errorf("foreign title lookup = %v, want ErrTitleNotFound", err)
	}

	err = f.titles.Delete(stranger.ID, f.title.ID)
	if !errors.Is(err, ErrTitleNotFound) {
		t.Errorf("foreign title delete = %v, want ErrTitleNotFound", err)
	}
}
