// Package tokens stores single-use email tokens. Only the sha256 of a token
// is kept at rest.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Purpose string

// Purposes match the type query parameter of /auth/verify.
const (
	EmailVerification Purpose = "email_verification"
	Recovery          Purpose = "recovery"
)

var ErrInvalid = errors.New("token invalid or expired")

func (p Purpose) Valid() bool {
	return p == EmailVerification || p == Recovery
}

type Repository struct {
	now func() time.Time
}

func NewRepository() *Repository {
	return &Repository{now: time.Now}
}

// Issue stores a new token for userID and returns its raw value. Older
// unconsumed tokens of the same purpose are invalidated.
func (r *Repository) Issue(ctx context.Context, tx pgx.Tx, userID string, purpose Purpose, ttl time.Duration) (string, error) {
	raw, err := NewRaw()
	if err != nil {
		return "", err
	}
	now := r.now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE auth_tokens
		SET consumed_at = $3
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL
	`, userID, string(purpose), now); err != nil {
		return "", err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO auth_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), userID, string(purpose), Hash(raw), now.Add(ttl), now)
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Consume marks the token used and returns its user. Unknown, expired,
// already consumed or wrong-purpose tokens give ErrInvalid.
func (r *Repository) Consume(ctx context.Context, tx pgx.Tx, raw string, purpose Purpose) (string, error) {
	var userID string
	err := tx.QueryRow(ctx, `
		UPDATE auth_tokens
		SET consumed_at = $3
		WHERE token_hash = $1 AND purpose = $2
		  AND consumed_at IS NULL AND expires_at > $3
		RETURNING user_id::text
	`, Hash(raw), string(purpose), r.now().UTC()).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalid
		}
		return "", err
	}
	return userID, nil
}

func NewRaw() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
