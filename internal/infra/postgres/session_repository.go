// Package postgres persists session, user, and question documents as JSONB
// rows, mirroring the full-document read/write semantics the coordinator
// assumes.
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

// SessionRepository implements app.SessionRepository on Postgres.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	s := &domain.Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO sessions (id, status, data) VALUES ($1, $2, $3)`,
		s.ID, string(s.Status), raw)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status=$2, data=$3, updated_at=now() WHERE id=$1`,
		s.ID, string(s.Status), raw)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Finalize writes the finished session and the updated user profiles in one
// transaction so a crash mid-finalize cannot leave ratings half-recorded.
func (r *SessionRepository) Finalize(ctx context.Context, s *domain.Session, users []*domain.UserProfile) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer func() {
		if err != nil {
			rbErr := tx.Rollback(ctx)
			if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE sessions SET status=$2, data=$3, updated_at=now() WHERE id=$1`,
		s.ID, string(s.Status), raw)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}

	for _, u := range users {
		rawUser, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user %s: %w", u.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO users (id, data) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET data=excluded.data, updated_at=now()`,
			u.ID, rawUser)
		if err != nil {
			return fmt.Errorf("save user %s: %w", u.ID, err)
		}
	}

	return tx.Commit(ctx)
}
