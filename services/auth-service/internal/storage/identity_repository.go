package storage

import (
	"context"
	"errors"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/jackc/pgx/v5"
)

// Identity links a provider account to a local user.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// FindOrCreateByIdentity resolves the provider identity to a user. An
// unlinked identity is attached to the user with the same email, or to a new
// password-less user whose email counts as verified. created reports whether
// a user row was inserted.
func (r *UserRepository) FindOrCreateByIdentity(ctx context.Context, tx pgx.Tx, id Identity) (user User, created bool, err error) {
	var userID string
	err = tx.QueryRow(ctx, `
		SELECT user_id::text
		FROM user_identities
		WHERE provider = $1 AND subject = $2
	`, id.Provider, id.Subject).Scan(&userID)
	switch {
	case err == nil:
		user, err = r.scanOne(ctx, tx, `WHERE id::text = $1`, userID)
		return user, false, err
	case !db.IsNotFound(err):
		return User{}, false, err
	}

	user, err = r.scanOne(ctx, tx, `WHERE email = $1`, NormalizeEmail(id.Email))
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		verified := nowUTC()
		user = User{Email: id.Email, EmailVerifiedAt: &verified}
		if err = r.CreateTx(ctx, tx, &user, id.Name); err != nil {
			return User{}, false, err
		}
		created = true
	default:
		return User{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_identities (provider, subject, user_id, email)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (provider, subject) DO NOTHING
	`, id.Provider, id.Subject, user.ID, NormalizeEmail(id.Email))
	if err != nil {
		return User{}, false, err
	}
	return user, created, nil
}
