package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/booking-service/internal/availability"
	"github.com/bookly-app/bookly/services/booking-service/internal/model"
	"github.com/bookly-app/bookly/services/booking-service/internal/reference"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSlotTaken          = errors.New("slot already booked")
	ErrSlotMismatch       = errors.New("slot does not match the requested date and time")
	ErrConflict           = errors.New("time slot already booked")
	ErrInvalidTransition  = status.ErrInvalidTransition
	ErrReferenceExhausted = errors.New("could not allocate a booking reference")
)

const (
	referenceConstraint  = "reservations_booking_reference_key"
	activeSlotConstraint = "reservations_active_slot_uidx"
)

type ReservationRepository struct {
	pool *db.Pool
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ReservationRepository) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return r.pool.InTx(ctx, fn)
}

func (r *ReservationRepository) ListOpenSlots(ctx context.Context, businessID, date string) ([]model.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, COALESCE(service_id::text, ''), date::text,
			to_char(time, 'HH24:MI'), is_booked, available_staff_count
		FROM available_slots
		WHERE business_id = $1 AND date = $2::date AND NOT is_booked
		ORDER BY time ASC
	`, businessID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.ServiceID, &s.Date, &s.Time, &s.IsBooked, &s.AvailableStaffCount); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// CountSlots counts every slot row of the day, booked or not.
func (r *ReservationRepository) CountSlots(ctx context.Context, businessID, date string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM available_slots WHERE business_id = $1 AND date = $2::date
	`, businessID, date).Scan(&n)
	return n, err
}

// HoursFor returns the business_hours row of the weekday (0 = Sunday).
func (r *ReservationRepository) HoursFor(ctx context.Context, businessID string, dayOfWeek int) (availability.Hours, bool, error) {
	h := availability.Hours{DayOfWeek: dayOfWeek}
	err := r.pool.QueryRow(ctx, `
		SELECT to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'), is_closed
		FROM business_hours
		WHERE business_id = $1 AND day_of_week = $2
	`, businessID, dayOfWeek).Scan(&h.OpenTime, &h.CloseTime, &h.IsClosed)
	if err != nil {
		if db.IsNotFound(err) {
			return availability.Hours{}, false, nil
		}
		return availability.Hours{}, false, err
	}
	return h, true, nil
}

// ReservedTimes lists the times held by active reservations on the date along
// with the length of their service.
func (r *ReservationRepository) ReservedTimes(ctx context.Context, businessID, date string) ([]availability.Reserved, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(r.reservation_time, 'HH24:MI'), COALESCE(s.duration_minutes, 0)
		FROM reservations r
		LEFT JOIN services s ON s.id = r.service_id
		WHERE r.business_id = $1 AND r.reservation_date = $2::date AND r.status <> 'cancelled'
	`, businessID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Reserved
	for rows.Next() {
		var clock string
		var mins int
		if err := rows.Scan(&clock, &mins); err != nil {
			return nil, err
		}
		out = append(out, availability.Reserved{Time: clock, Duration: time.Duration(mins) * time.Minute})
	}
	return out, rows.Err()
}

func (r *ReservationRepository) ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error) {
	var mins int
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes FROM services WHERE id = $1 AND business_id = $2
	`, serviceID, businessID).Scan(&mins)
	if db.IsNotFound(err) {
		return 0, ErrNotFound
	}
	return mins, err
}

// GetService loads the service row inside the booking transaction.
func (r *ReservationRepository) GetService(ctx context.Context, tx pgx.Tx, businessID, serviceID string) (model.Service, error) {
	var s model.Service
	var price string
	err := tx.QueryRow(ctx, `
		SELECT s.id::text, s.business_id::text, s.name, s.price::text, s.duration_minutes, s.is_active,
			b.owner_id::text, b.name
		FROM services s
		JOIN businesses b ON b.id = s.business_id
		WHERE s.id = $1 AND s.business_id = $2
		FOR SHARE OF s
	`, serviceID, businessID).Scan(&s.ID, &s.BusinessID, &s.Name, &price, &s.DurationMinutes, &s.IsActive, &s.OwnerID, &s.BusinessName)
	if err != nil {
		if db.IsNotFound(err) {
			return model.Service{}, ErrNotFound
		}
		return model.Service{}, err
	}
	if s.Price, err = money.Parse(price); err != nil {
		return model.Service{}, fmt.Errorf("service price: %w", err)
	}
	return s, nil
}

// ClaimSlot marks the slot booked. Only one concurrent caller can flip
// is_booked, every other caller gets ErrSlotTaken.
func (r *ReservationRepository) ClaimSlot(ctx context.Context, tx pgx.Tx, slotID, businessID, date, clock string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE available_slots
		SET is_booked = true
		WHERE id = $1 AND business_id = $2 AND NOT is_booked
			AND date = $3::date AND time = $4::time
	`, slotID, businessID, date, clock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var booked bool
	var slotDate, slotTime string
	err = tx.QueryRow(ctx, `
		SELECT is_booked, date::text, to_char(time, 'HH24:MI')
		FROM available_slots
		WHERE id = $1 AND business_id = $2
	`, slotID, businessID).Scan(&booked, &slotDate, &slotTime)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if slotDate != date || slotTime != clock {
		return ErrSlotMismatch
	}
	return ErrSlotTaken
}

func (r *ReservationRepository) ReleaseSlot(ctx context.Context, tx pgx.Tx, slotID string) error {
	if slotID == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE available_slots SET is_booked = false WHERE id = $1`, slotID)
	return err
}

// Create inserts res with a reference drawn from next. A reference collision
// rolls back to a savepoint and draws again.
func (r *ReservationRepository) Create(ctx context.Context, tx pgx.Tx, res *model.Reservation, next func() string) error {
	for attempt := 0; attempt < reference.MaxAttempts; attempt++ {
		res.BookingReference = next()
		err := r.insert(ctx, tx, res)
		if err == nil {
			return nil
		}
		if db.IsConstraint(err, referenceConstraint) {
			continue
		}
		if db.IsConstraint(err, activeSlotConstraint) {
			return ErrConflict
		}
		return err
	}
	return ErrReferenceExhausted
}

func (r *ReservationRepository) insert(ctx context.Context, tx pgx.Tx, res *model.Reservation) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	var slotID any
	if res.SlotID != "" {
		slotID = res.SlotID
	}
	err = sp.QueryRow(ctx, `
		INSERT INTO reservations
			(business_id, service_id, user_id, slot_id, booking_reference, reservation_date, reservation_time,
			 status, total_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::time, $8, $9::numeric, $10)
		RETURNING id::text, created_at, updated_at
	`, res.BusinessID, res.ServiceID, res.UserID, slotID, res.BookingReference, res.Date, res.Time,
		string(res.Status), money.Format(res.TotalAmount), res.Notes).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return err
	}
	return sp.Commit(ctx)
}

const reservationColumns = `
	r.id::text, r.business_id::text, r.service_id::text, r.user_id::text, COALESCE(r.slot_id::text, ''),
	r.booking_reference, r.reservation_date::text, to_char(r.reservation_time, 'HH24:MI'), r.status,
	r.total_amount::text, COALESCE(r.notes, ''), r.cancelled_at, r.created_at, r.updated_at,
	COALESCE(s.name, ''), COALESCE(b.name, ''), COALESCE(b.owner_id::text, '')`

const reservationFrom = `
	FROM reservations r
	LEFT JOIN services s ON s.id = r.service_id
	LEFT JOIN businesses b ON b.id = r.business_id`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	var st, total string
	err := row.Scan(&res.ID, &res.BusinessID, &res.ServiceID, &res.UserID, &res.SlotID,
		&res.BookingReference, &res.Date, &res.Time, &st,
		&total, &res.Notes, &res.CancelledAt, &res.CreatedAt, &res.UpdatedAt,
		&res.ServiceName, &res.BusinessName, &res.OwnerID)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = status.Reservation(st)
	if res.TotalAmount, err = money.Parse(total); err != nil {
		return model.Reservation{}, fmt.Errorf("reservation total: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, err := scanReservation(r.pool.QueryRow(ctx, `SELECT `+reservationColumns+reservationFrom+` WHERE r.id = $1`, id))
	if db.IsNotFound(err) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRow(ctx, `SELECT `+reservationColumns+reservationFrom+` WHERE r.id = $1 FOR UPDATE OF r`, id))
	if db.IsNotFound(err) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+reservationFrom+`
		WHERE r.user_id = $1
		ORDER BY r.reservation_date DESC, r.reservation_time DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateStatus applies a guarded transition. It fails with
// ErrInvalidTransition when the table forbids it or when the row no longer
// holds the expected status.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to status.Reservation) (time.Time, error) {
	if err := status.CheckTransition(from, to); err != nil {
		return time.Time{}, err
	}
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = $3,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN now() ELSE cancelled_at END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`, id, string(from), string(to)).Scan(&updatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return time.Time{}, ErrInvalidTransition
		}
		return time.Time{}, err
	}
	return updatedAt, nil
}
