package memory

import (
	"context"
	"encoding/json"
	"sync"

	"quiz-battle-service/internal/domain"
)

// UserRepository is an in-memory implementation of app.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.UserProfile
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.UserProfile)}
}

// Seed inserts a profile without going through Save; test convenience.
func (r *UserRepository) Seed(u *domain.UserProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = copyUser(u)
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) Save(_ context.Context, u *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = copyUser(u)
	return nil
}

func copyUser(u *domain.UserProfile) *domain.UserProfile {
	raw, _ := json.Marshal(u)
	out := &domain.UserProfile{}
	_ = json.Unmarshal(raw, out)
	return out
}
