package memory

import (
	"context"
	"errors"
	"testing"

	"quiz-battle-service/internal/domain"
)

func TestSessionRepositoryCopiesDocuments(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	s := &domain.Session{ID: "s1", Status: domain.SessionWaiting}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := repo.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	loaded.Status = domain.SessionOngoing

	again, _ := repo.FindByID(ctx, "s1")
	if again.Status != domain.SessionWaiting {
		t.Fatalf("mutating a loaded document must not touch the store")
	}
}

func TestSessionRepositoryUpdateMissing(t *testing.T) {
	repo := NewSessionRepository()
	err := repo.Update(context.Background(), &domain.Session{ID: "nope"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestFinalizePersistsSessionAndUsers(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository()
	repo := NewSessionRepository().WithUsers(users)

	s := &domain.Session{ID: "s1", Status: domain.SessionOngoing}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	s.Status = domain.SessionFinished
	err := repo.Finalize(ctx, s, []*domain.UserProfile{
		{ID: "u1", Rating: 1216},
		{ID: "u2", Rating: 1184},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, _ := repo.FindByID(ctx, "s1")
	if got.Status != domain.SessionFinished {
		t.Fatalf("expected finished, got %s", got.Status)
	}
	u1, err := users.FindByID(ctx, "u1")
	if err != nil || u1.Rating != 1216 {
		t.Fatalf("expected u1 saved at 1216, got %v/%v", u1, err)
	}
}

func TestQuestionStoreLookups(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore([]domain.Question{
		{ID: "q1", Topic: "go"},
		{ID: "q2", Topic: "go"},
		{ID: "q3", Topic: "sql"},
	})

	byIDs, err := store.FindByIDs(ctx, []string{"q1", "missing", "q3"})
	if err != nil || len(byIDs) != 2 {
		t.Fatalf("expected 2 hits, got %d (%v)", len(byIDs), err)
	}

	pool, err := store.FindByTopic(ctx, "go")
	if err != nil || len(pool) != 2 {
		t.Fatalf("expected topic pool of 2, got %d (%v)", len(pool), err)
	}

	all, err := store.FindByTopic(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("empty topic must return everything, got %d (%v)", len(all), err)
	}
}
