package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

const emailConstraint = "users_email_key"

type User struct {
	ID              string
	Email           string
	PasswordHash    string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}

// HasPassword is false for accounts created through an OAuth provider.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

type Profile struct {
	UserID          string
	FullName        string
	IsBusinessOwner bool
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Pool() *db.Pool {
	return r.pool
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateTx inserts the user and its profile. A duplicate email gives
// ErrEmailTaken.
func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user *User, fullName string) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = NormalizeEmail(user.Email)
	err := tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, email_verified_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		RETURNING created_at
	`, user.ID, user.Email, user.PasswordHash, user.EmailVerifiedAt).Scan(&user.CreatedAt)
	if err != nil {
		if db.IsConstraint(err, emailConstraint) || db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_profiles (id, full_name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (id) DO NOTHING
	`, user.ID, strings.TrimSpace(fullName))
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.scanOne(ctx, r.pool, `WHERE email = $1`, NormalizeEmail(email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.scanOne(ctx, r.pool, `WHERE id::text = $1`, id)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *UserRepository) scanOne(ctx context.Context, q rowQuerier, where string, arg any) (User, error) {
	var u User
	err := q.QueryRow(ctx, `
		SELECT id::text, email, COALESCE(password_hash, ''), email_verified_at, created_at
		FROM users
		`+where, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerifiedAt, &u.CreatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *UserRepository) SetPassword(ctx context.Context, tx pgx.Tx, userID, hash string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id::text = $1
	`, userID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkEmailVerified stamps email_verified_at once; later calls keep the
// first timestamp.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, tx pgx.Tx, userID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET email_verified_at = COALESCE(email_verified_at, now()), updated_at = now()
		WHERE id::text = $1
	`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) Profile(ctx context.Context, userID string) (Profile, error) {
	p := Profile{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(full_name, ''), COALESCE(is_business_owner, false)
		FROM user_profiles
		WHERE id::text = $1
	`, userID).Scan(&p.FullName, &p.IsBusinessOwner)
	if err != nil && !db.IsNotFound(err) {
		return Profile{}, err
	}
	return p, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
