package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/jackc/pgx/v5"
)

const EventType = "auth.audit.v1"

// Audit event names.
const (
	SignIn        = "auth.signin"
	SignInFailed  = "auth.signin_failed"
	SignUp        = "auth.signup"
	SignOut       = "auth.signout"
	PasswordReset = "auth.password_reset"
	EmailVerified = "auth.email_verified"
	OAuthSignIn   = "auth.oauth_signin"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record writes a standalone audit row outside any business transaction.
func (r *Repository) Record(ctx context.Context, eventType string, actorID string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_id, metadata)
		VALUES ($1, NULLIF($2, '')::uuid, $3)
	`, eventType, actorID, raw)
	return err
}

// RecordTx writes the audit row and its outbox event inside tx.
func (r *Repository) RecordTx(ctx context.Context, tx pgx.Tx, outboxRepo *outbox.Repository, eventType string, actorID string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_id, metadata)
		VALUES ($1, NULLIF($2, '')::uuid, $3)
	`, eventType, actorID, raw)
	if err != nil {
		return err
	}
	if outboxRepo == nil {
		return nil
	}

	evt, err := outbox.NewEvent("audit_event", "auth", EventType, map[string]any{
		"event_type": eventType,
		"actor_id":   actorID,
		"metadata":   metadata,
	})
	if err != nil {
		return err
	}
	return outboxRepo.Insert(ctx, tx, evt)
}

type AuditEvent struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, COALESCE(actor_id::text, ''), metadata, created_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.EventType, &e.ActorID, &e.Metadata, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}
