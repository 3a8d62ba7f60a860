package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CodeWithJuber/ai-painting-generator/internal/db"
	"github.com/CodeWithJuber/ai-painting-generator/internal/model"
	"github.com/CodeWithJuber/ai-painting-generator/internal/provider"
	"github.com/CodeWithJuber/ai-painting-generator/internal/repository"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	database.SetMaxOpenConns(1)

	err = db.RunMigrations(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

// env bundles the repositories and seeded rows most service tests need.
type env struct {
	users      repository.UserRepository
	titles     repository.TitleRepository
	references repository.ReferenceRepository
	ideas      repository.IdeaRepository
	paintings  repository.PaintingRepository

	user  *model.User
	title *model.Title
}

func newEnv(t *testing.T) *env {
	t.Helper()
	database := newTestDB(t)

	e := &env{
		users:      repository.NewUserRepository(database),
		titles:     repository.NewTitleRepository(database),
		references: repository.NewReferenceRepository(database),
		ideas:      repository.NewIdeaRepository(database),
		paintings:  repository.NewPaintingRepository(database),
	}

	e.user = &model.User{
		ID:           uuid.New().String(),
		Username:     "painter",
		Email:        "painter@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	}
	if err := e.users.Create(e.user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	e.title = &model.Title{
		ID:        uuid.New().String(),
		UserID:    e.user.ID,
		Title:     "Mountain lake at dawn",
		CreatedAt: time.Now(),
	}
	if err := e.titles.Create(e.title); err != nil {
		t.Fatalf("failed to seed title: %v", err)
	}

	return e
}

func (e *env) addReference(t *testing.T, global bool) *model.ReferenceImage {
	t.Helper()
	ref := &model.ReferenceImage{
		ID:        uuid.New().String(),
		UserID:    e.user.ID,
		ImageData: "data:image/png;base64,QUJD",
		IsGlobal:  global,
		CreatedAt: time.Now(),
	}
	if !global {
		ref.TitleID = &e.title.ID
	}
	if err := e.references.Create(ref); err != nil {
		t.Fatalf("failed to seed reference: %v", err)
	}
	return ref
}

// waitTerminal polls until every painting for the title is terminal.
func (e *env) waitTerminal(t *testing.T, want int) []*repository.PaintingRow {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := e.paintings.ForTitle(e.title.ID)
		if err != nil {
			t.Fatalf("ForTitle: %v", err)
		}
		if len(rows) == want {
			terminal := true
			for _, row := range rows {
				if !row.IsTerminal() {
					terminal = false
					break
				}
			}
			if terminal {
				return rows
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("paintings did not settle within deadline")
	return nil
}

// stubConcepts records every request and returns scripted ideas or errors.
type stubConcepts struct {
	ideas repository.IdeaRepository

	mu    sync.Mutex
	calls []provider.ConceptRequest
	// failAt contains 0-based call indexes that should fail.
	failAt map[int]bool
}

func newStubConcepts(ideas repository.IdeaRepository) *stubConcepts {
	return &stubConcepts{ideas: ideas, failAt: map[int]bool{}}
}

func (s *stubConcepts) Generate(ctx context.Context, title *model.Title, prior []*model.Idea, refs []*model.ReferenceImage) (*model.Idea, error) {
	s.mu.Lock()
	call := len(s.calls)
	req := provider.ConceptRequest{TitleText: title.Title}
	for _, p := range prior {
		req.PriorSummaries = append(req.PriorSummaries, p.Summary)
	}
	s.calls = append(s.calls, req)
	fail := s.failAt[call]
	s.mu.Unlock()

	if fail {
		return nil, &provider.Error{Provider: "concept", StatusCode: 500, Message: "stub failure"}
	}

	idea := &model.Idea{
		ID:         uuid.New().String(),
		TitleID:    title.ID,
		Summary:    fmt.Sprintf("idea %d", call),
		FullPrompt: fmt.Sprintf("full prompt %d", call),
		CreatedAt:  time.Now(),
	}
	err := s.ideas.Create(idea)
	if err != nil {
		return nil, err
	}
	return idea, nil
}

func (s *stubConcepts) requests() []provider.ConceptRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.ConceptRequest, len(s.calls))
	copy(out, s.calls)
	return out
}

// stubRenderer completes paintings the way RenderService would, with
// scripted failures and a concurrency gauge. Failure scripts are set before
// Start: defaultFailures applies to every painting without an explicit
// per-id script. Negative means fail forever.
type stubRenderer struct {
	paintings repository.PaintingRepository

	mu              sync.Mutex
	defaultFailures int
	failures        map[string]int // remaining failures per painting
	scripted        map[string]bool
	attempts        map[string]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newStubRenderer(paintings repository.PaintingRepository) *stubRenderer {
	return &stubRenderer{
		paintings: paintings,
		failures:  map[string]int{},
		scripted:  map[string]bool{},
		attempts:  map[string]int{},
	}
}

func (s *stubRenderer) script(paintingID string, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[paintingID] = failures
	s.scripted[paintingID] = true
}

func (s *stubRenderer) setDefaultFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultFailures = n
}

func (s *stubRenderer) Render(ctx context.Context, painting *model.Painting, fullPrompt string, refs []*model.ReferenceImage) error {
	n := s.inFlight.Add(1)
	for {
		old := s.maxInFlight.Load()
		if n <= old || s.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}
	// Hold the slot long enough for overlap to be observable.
	time.Sleep(10 * time.Millisecond)
	defer s.inFlight.Add(-1)

	s.mu.Lock()
	s.attempts[painting.ID]++
	if !s.scripted[painting.ID] {
		s.failures[painting.ID] = s.defaultFailures
		s.scripted[painting.ID] = true
	}
	remaining := s.failures[painting.ID]
	if remaining != 0 {
		if remaining > 0 {
			s.failures[painting.ID] = remaining - 1
		}
		s.mu.Unlock()
		return &provider.Error{Provider: "render", StatusCode: 502, Message: "stub render failure"}
	}
	s.mu.Unlock()

	refIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		refIDs = append(refIDs, ref.ID)
	}
	return s.paintings.MarkCompleted(painting.ID, "http://test/"+painting.ID+".png", "data:image/png;base64,IMG", refIDs)
}

func (s *stubRenderer) attemptCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

func testGenerationConfig() GenerationConfig {
	return GenerationConfig{
		QuantityMin: 1,
		QuantityMax: 10,
		Concurrency: 3,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
		BatchPause:  time.Millisecond,
	}
}

func newGenerationEnv(t *testing.T) (*env, *GenerationService, *stubConcepts, *stubRenderer) {
	t.Helper()
	e := newEnv(t)
	concepts := newStubConcepts(e.ideas)
	renderer := newStubRenderer(e.paintings)

	svc := NewGenerationService(
		e.titles, e.paintings, e.ideas, e.references,
		concepts, renderer,
		testGenerationConfig(),
	)
	// Tests should not wait out real backoffs.
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return e, svc, concepts, renderer
}
