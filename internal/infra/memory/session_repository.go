// Package memory holds in-process implementations of the coordinator's
// repositories, used in tests and when the service runs without Postgres.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"quiz-battle-service/internal/domain"
)

// SessionRepository is an in-memory implementation of app.SessionRepository.
// Documents are deep-copied through JSON on every read and write so callers
// never share state with the store, matching full-document CRUD semantics.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	users    *UserRepository
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *SessionRepository) FindByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (r *SessionRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = copySession(s)
	return nil
}

func (r *SessionRepository) Update(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	r.sessions[s.ID] = copySession(s)
	return nil
}

// Finalize applies the session and user writes under one lock; the memory
// store has no partial-failure mode, which matches the transactional
// contract the postgres store provides.
func (r *SessionRepository) Finalize(ctx context.Context, s *domain.Session, users []*domain.UserProfile) error {
	if err := r.Update(ctx, s); err != nil {
		return err
	}
	if r.users != nil {
		for _, u := range users {
			if err := r.users.Save(ctx, u); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithUsers lets Finalize write user profiles alongside the session.
func (r *SessionRepository) WithUsers(users *UserRepository) *SessionRepository {
	r.users = users
	return r
}

func copySession(s *domain.Session) *domain.Session {
	raw, _ := json.Marshal(s)
	out := &domain.Session{}
	_ = json.Unmarshal(raw, out)
	return out
}
