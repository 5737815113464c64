package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-side row behind a session cookie. The cookie's JWT
// carries its id.
type Session struct {
	ID        string
	UserID    string
	Provider  string
	UserAgent string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session may still authenticate requests.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts s in tx. A missing id is generated.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO sessions (id, user_id, provider, user_agent, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, s.ID, s.UserID, s.Provider, s.UserAgent, s.ExpiresAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, provider, COALESCE(user_agent, ''), expires_at, revoked_at
		FROM sessions
		WHERE id::text = $1
	`, id).Scan(&s.ID, &s.UserID, &s.Provider, &s.UserAgent, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// Revoke is idempotent; revoking an unknown or revoked session is not an
// error.
func (r *Repository) Revoke(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = now()
		WHERE id::text = $1 AND revoked_at IS NULL
	`, id)
	return err
}

// RevokeAllForUser ends every open session of the user, used after a
// password reset.
func (r *Repository) RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
