package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-battle-service/internal/domain"
)

// UserRepository implements app.UserRepository on Postgres.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM users WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u := &domain.UserProfile{}
	if err := json.Unmarshal(raw, u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, u *domain.UserProfile) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data=excluded.data, updated_at=now()`,
		u.ID, raw)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
