package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("not found")

type Notification struct {
	ID            string
	UserID        string
	Title         string
	Message       string
	Type          string
	ReferenceType string
	ReferenceID   string
	IsRead        bool
	CreatedAt     time.Time
}

// Contact is where a user can be reached outside the app.
type Contact struct {
	Email    string
	Phone    string
	FullName string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertAll writes the notifications of one event in a single transaction.
func (r *Repository) InsertAll(ctx context.Context, list []Notification) error {
	if len(list) == 0 {
		return nil
	}
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, n := range list {
			if _, err := tx.Exec(ctx, `
				INSERT INTO notifications (user_id, title, message, type, reference_type, reference_id)
				VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
			`, n.UserID, n.Title, n.Message, n.Type, n.ReferenceType, n.ReferenceID); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the user's newest notifications first.
func (r *Repository) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, title, message, type,
			COALESCE(reference_type, ''), COALESCE(reference_id, ''), is_read, created_at
		FROM notifications
		WHERE user_id::text = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.ReferenceType, &n.ReferenceID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications WHERE user_id::text = $1 AND NOT is_read
	`, userID).Scan(&n)
	return n, err
}

// MarkRead marks one of the user's notifications read. Someone else's id
// gives ErrNotFound.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = true
		WHERE id::text = $1 AND user_id::text = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = true WHERE user_id::text = $1 AND NOT is_read
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ContactFor looks up the user's email and profile phone.
func (r *Repository) ContactFor(ctx context.Context, userID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT u.email, COALESCE(p.phone, ''), COALESCE(p.full_name, '')
		FROM users u
		LEFT JOIN user_profiles p ON p.id = u.id
		WHERE u.id::text = $1
	`, userID).Scan(&c.Email, &c.Phone, &c.FullName)
	if err != nil {
		if db.IsNotFound(err) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	return c, nil
}
