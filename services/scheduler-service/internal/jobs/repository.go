package jobs

import (
	"context"
	"time"

	"github.com/bookly-app/bookly/libs/status"
	"github.com/jackc/pgx/v5"
)

// localLayout renders an instant as a wall clock value comparable with
// reservation_date + reservation_time.
const localLayout = "2006-01-02 15:04:05"

type Reservation struct {
	ID               string
	BookingReference string
	BusinessID       string
	BusinessName     string
	OwnerID          string
	UserID           string
	CustomerEmail    string
	SlotID           string
	ServiceName      string
	Date             string
	Time             string
	Status           status.Reservation
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const candidateColumns = `
	r.id::text, r.booking_reference, r.business_id::text, COALESCE(b.name, ''), COALESCE(b.owner_id::text, ''),
	r.user_id::text, COALESCE(u.email, ''), COALESCE(r.slot_id::text, ''), COALESCE(s.name, ''),
	r.reservation_date::text, to_char(r.reservation_time, 'HH24:MI'), r.status`

const candidateFrom = `
	FROM reservations r
	LEFT JOIN businesses b ON b.id = r.business_id
	LEFT JOIN services s ON s.id = r.service_id
	LEFT JOIN users u ON u.id = r.user_id`

// ExpiredPending locks pending reservations that started before cutoff and
// were never paid.
func (r *Repository) ExpiredPending(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]Reservation, error) {
	return r.query(ctx, tx, `SELECT `+candidateColumns+candidateFrom+`
		WHERE r.status = 'pending'
		  AND (r.reservation_date + r.reservation_time) < $1::timestamp
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.reservation_id = r.id AND p.payment_status = 'succeeded'
		  )
		ORDER BY r.reservation_date, r.reservation_time
		LIMIT $2
		FOR UPDATE OF r SKIP LOCKED
	`, cutoff.Format(localLayout), limit)
}

// DueReminders locks confirmed reservations starting in [from, until) that
// have not been reminded yet.
func (r *Repository) DueReminders(ctx context.Context, tx pgx.Tx, from, until time.Time, limit int) ([]Reservation, error) {
	return r.query(ctx, tx, `SELECT `+candidateColumns+candidateFrom+`
		WHERE r.status = 'confirmed'
		  AND r.reminder_sent_at IS NULL
		  AND (r.reservation_date + r.reservation_time) >= $1::timestamp
		  AND (r.reservation_date + r.reservation_time) < $2::timestamp
		ORDER BY r.reservation_date, r.reservation_time
		LIMIT $3
		FOR UPDATE OF r SKIP LOCKED
	`, from.Format(localLayout), until.Format(localLayout), limit)
}

func (r *Repository) query(ctx context.Context, tx pgx.Tx, sql string, args ...any) ([]Reservation, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var res Reservation
		var st string
		if err := rows.Scan(&res.ID, &res.BookingReference, &res.BusinessID, &res.BusinessName, &res.OwnerID,
			&res.UserID, &res.CustomerEmail, &res.SlotID, &res.ServiceName,
			&res.Date, &res.Time, &st); err != nil {
			return nil, err
		}
		res.Status = status.Reservation(st)
		out = append(out, res)
	}
	return out, rows.Err()
}

// Cancel moves a pending reservation to cancelled. It reports false when the
// row changed status since it was selected.
func (r *Repository) Cancel(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	if err := status.CheckTransition(status.Pending, status.Cancelled); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'cancelled', cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ReleaseSlot(ctx context.Context, tx pgx.Tx, slotID string) error {
	if slotID == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE available_slots SET is_booked = false WHERE id = $1`, slotID)
	return err
}

func (r *Repository) MarkReminded(ctx context.Context, tx pgx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reservations
		SET reminder_sent_at = now(), updated_at = now()
		WHERE id::text = ANY($1)
	`, ids)
	return err
}
