package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = status.ErrInvalidTransition
	ErrDuplicateProviderEvent = errors.New("duplicate provider event")
	ErrPendingExists          = errors.New("pending payment already exists")
)

const pendingPaymentConstraint = "payments_pending_reservation_uidx"

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Pool() *db.Pool {
	return r.pool
}

// Reservation is the part of a booking billing needs to charge for it.
type Reservation struct {
	ID          string
	BusinessID  string
	UserID      string
	OwnerID     string
	Status      status.Reservation
	TotalAmount decimal.Decimal
	Reference   string
}

type Payment struct {
	ID              string
	ReservationID   string
	BusinessID      string
	UserID          string
	Amount          decimal.Decimal
	Currency        string
	Status          status.Payment
	Method          string
	StripePaymentID string
	StripeRefundID  string
	OwnerID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GetReservation locks the reservation row for the rest of tx.
func (r *Repository) GetReservation(ctx context.Context, tx pgx.Tx, id string) (Reservation, error) {
	var res Reservation
	var total string
	err := tx.QueryRow(ctx, `
		SELECT r.id::text, r.business_id::text, r.user_id::text, b.owner_id::text,
		       r.status, r.total_amount::text, r.booking_reference
		FROM reservations r
		JOIN businesses b ON b.id = r.business_id
		WHERE r.id::text = $1
		FOR UPDATE OF r
	`, id).Scan(&res.ID, &res.BusinessID, &res.UserID, &res.OwnerID, &res.Status, &total, &res.Reference)
	if err != nil {
		if db.IsNotFound(err) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, err
	}
	if res.TotalAmount, err = money.Parse(total); err != nil {
		return Reservation{}, err
	}
	return res, nil
}

const paymentColumns = `
	p.id::text, p.reservation_id::text, p.business_id::text, p.user_id::text,
	p.amount::text, p.currency, p.payment_status, COALESCE(p.payment_method, ''),
	COALESCE(p.stripe_payment_id, ''), COALESCE(p.stripe_refund_id, ''),
	b.owner_id::text, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var amount string
	if err := row.Scan(
		&p.ID, &p.ReservationID, &p.BusinessID, &p.UserID,
		&amount, &p.Currency, &p.Status, &p.Method,
		&p.StripePaymentID, &p.StripeRefundID,
		&p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if db.IsNotFound(err) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	var err error
	if p.Amount, err = money.Parse(amount); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// PendingForReservation returns the open payment of a reservation, if any.
func (r *Repository) PendingForReservation(ctx context.Context, tx pgx.Tx, reservationID string) (Payment, bool, error) {
	p, err := scanPayment(tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		JOIN businesses b ON b.id = p.business_id
		WHERE p.reservation_id::text = $1 AND p.payment_status = 'pending'
		ORDER BY p.created_at DESC
		LIMIT 1
	`, reservationID))
	if errors.Is(err, ErrNotFound) {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

// InsertPayment stores p and fills its id and timestamps. A second pending
// payment for the same reservation gives ErrPendingExists.
func (r *Repository) InsertPayment(ctx context.Context, tx pgx.Tx, p *Payment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO payments (reservation_id, business_id, user_id, amount, currency, payment_status, payment_method, stripe_payment_id)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, NULLIF($7, ''), $8)
		RETURNING id::text, created_at, updated_at
	`, p.ReservationID, p.BusinessID, p.UserID, money.Format(p.Amount), p.Currency, string(p.Status), p.Method, p.StripePaymentID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsConstraint(err, pendingPaymentConstraint) {
			return ErrPendingExists
		}
		return err
	}
	return nil
}

func (r *Repository) GetPaymentForUpdate(ctx context.Context, tx pgx.Tx, id string) (Payment, error) {
	return scanPayment(tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		JOIN businesses b ON b.id = p.business_id
		WHERE p.id::text = $1
		FOR UPDATE OF p
	`, id))
}

// GetPaymentByIntentForUpdate finds the payment behind a provider intent id.
func (r *Repository) GetPaymentByIntentForUpdate(ctx context.Context, tx pgx.Tx, intentID string) (Payment, error) {
	return scanPayment(tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		JOIN businesses b ON b.id = p.business_id
		WHERE p.stripe_payment_id = $1
		FOR UPDATE OF p
	`, intentID))
}

// UpdateStatus moves a payment from one status to another. The WHERE clause
// guards against concurrent writers: a row no longer in from gives
// ErrInvalidTransition.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to status.Payment, refundID string) (time.Time, error) {
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE payments
		SET payment_status = $3,
		    stripe_refund_id = COALESCE(NULLIF($4, ''), stripe_refund_id),
		    updated_at = now()
		WHERE id::text = $1 AND payment_status = $2
		RETURNING updated_at
	`, id, string(from), string(to), refundID).Scan(&updatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return time.Time{}, ErrInvalidTransition
		}
		return time.Time{}, err
	}
	return updatedAt, nil
}

// ListForUser returns the caller's payments, newest first, optionally for a
// single reservation.
func (r *Repository) ListForUser(ctx context.Context, userID, reservationID string) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		JOIN businesses b ON b.id = p.business_id
		WHERE p.user_id::text = $1
		  AND ($2 = '' OR p.reservation_id::text = $2)
		ORDER BY p.created_at DESC
		LIMIT 100
	`, userID, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPendingForReconcile returns provider-backed pending payments created
// before olderThan, oldest first.
func (r *Repository) ListPendingForReconcile(ctx context.Context, olderThan time.Time, localPrefix string, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		JOIN businesses b ON b.id = p.business_id
		WHERE p.payment_status = 'pending'
		  AND p.created_at < $1
		  AND p.stripe_payment_id IS NOT NULL
		  AND p.stripe_payment_id NOT LIKE $2 || '%'
		ORDER BY p.created_at
		LIMIT $3
	`, olderThan, localPrefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

// InsertProviderEvent records a webhook delivery once. Replays give
// ErrDuplicateProviderEvent.
func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO billing_provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}

type AuditEvent struct {
	EventType  string
	ActorType  string
	ActorID    string
	BusinessID string
	Metadata   []byte
}

func (r *Repository) InsertAuditEvent(ctx context.Context, tx pgx.Tx, evt AuditEvent) error {
	var payload any
	if len(evt.Metadata) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(evt.Metadata, &payload); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_type, actor_id, business_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, evt.EventType, evt.ActorType, nullIfEmpty(evt.ActorID), nullIfEmpty(evt.BusinessID), payload)
	return err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
