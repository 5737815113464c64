package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type Business struct {
	ID          string
	Name        string
	Rating      decimal.Decimal
	ReviewCount int
}

type Reservation struct {
	ID           string
	Reference    string
	Date         string
	Time         string
	Status       status.Reservation
	TotalAmount  decimal.Decimal
	ServiceName  string
	CustomerName string
	Notes        string
}

type Payment struct {
	ID            string
	ReservationID string
	Reference     string
	CustomerName  string
	Amount        decimal.Decimal
	Currency      string
	Status        status.Payment
	Method        string
	CreatedAt     time.Time
}

type Review struct {
	ID           string
	Rating       int
	Comment      string
	CustomerName string
	CreatedAt    time.Time
}

type DailyMetric struct {
	Day       string
	Booked    int
	Cancelled int
	Confirmed int
}

type ReservationFilter struct {
	BusinessID string
	Status     status.Reservation
	Limit      int
	Offset     int
}

type PaymentFilter struct {
	BusinessID string
	Status     status.Payment
	Since      time.Time
	Limit      int
	Offset     int
}

type ReviewFilter struct {
	BusinessID string
	Rating     int
	Limit      int
	Offset     int
}

// where accumulates AND conditions with numbered placeholders. Each "?" in
// a condition becomes the next argument.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	return strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (w *where) page(limit, offset int) (string, []any) {
	args := append(append([]any{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// BusinessForOwner returns the owner's first business by creation time.
func (r *Repository) BusinessForOwner(ctx context.Context, ownerID string) (Business, error) {
	var b Business
	var rating string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, rating::text, review_count
		FROM businesses
		WHERE owner_id::text = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, ownerID).Scan(&b.ID, &b.Name, &rating, &b.ReviewCount)
	if err != nil {
		if db.IsNotFound(err) {
			return Business{}, ErrNotFound
		}
		return Business{}, err
	}
	b.Rating, err = decimal.NewFromString(rating)
	return b, err
}

const reservationColumns = `
	r.id::text, r.booking_reference, r.reservation_date::text, to_char(r.reservation_time, 'HH24:MI'),
	r.status, r.total_amount::text, COALESCE(s.name, ''), COALESCE(p.full_name, ''), COALESCE(r.notes, '')`

const reservationFrom = `
	FROM reservations r
	LEFT JOIN services s ON s.id = r.service_id
	LEFT JOIN user_profiles p ON p.id = r.user_id`

func scanReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()
	var out []Reservation
	for rows.Next() {
		var res Reservation
		var total string
		if err := rows.Scan(&res.ID, &res.Reference, &res.Date, &res.Time, &res.Status, &total, &res.ServiceName, &res.CustomerName, &res.Notes); err != nil {
			return nil, err
		}
		amount, err := money.Parse(total)
		if err != nil {
			return nil, err
		}
		res.TotalAmount = amount
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListReservations returns one page of the business's reservations, newest
// date and time first, and the count of every matching row.
func (r *Repository) ListReservations(ctx context.Context, f ReservationFilter) ([]Reservation, int, error) {
	w := &where{}
	w.add("r.business_id::text = ?", f.BusinessID)
	if f.Status != "" {
		w.add("r.status = ?", string(f.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+reservationFrom+` WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.Limit, f.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+reservationFrom+` WHERE `+w.String()+
		` ORDER BY r.reservation_date DESC, r.reservation_time DESC`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := scanReservations(rows)
	return out, total, err
}

// ReservationsBetween lists reservations dated from..to inclusive, in date
// and time order.
func (r *Repository) ReservationsBetween(ctx context.Context, businessID, from, to string) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+reservationFrom+`
		WHERE r.business_id::text = $1 AND r.reservation_date BETWEEN $2::date AND $3::date
		ORDER BY r.reservation_date ASC, r.reservation_time ASC
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func (r *Repository) CountReservations(ctx context.Context, businessID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM reservations WHERE business_id::text = $1`, businessID).Scan(&n)
	return n, err
}

func paymentWhere(f PaymentFilter) *where {
	w := &where{}
	w.add("pm.business_id::text = ?", f.BusinessID)
	if !f.Since.IsZero() {
		w.add("pm.created_at >= ?", f.Since.UTC())
	}
	if f.Status != "" {
		w.add("pm.payment_status = ?", string(f.Status))
	}
	return w
}

const paymentFrom = `
	FROM payments pm
	LEFT JOIN reservations r ON r.id = pm.reservation_id
	LEFT JOIN user_profiles p ON p.id = pm.user_id`

// ListPayments returns one page of payments, newest first, and the count of
// every matching row.
func (r *Repository) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, int, error) {
	w := paymentWhere(f)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+paymentFrom+` WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.Limit, f.Offset)
	rows, err := r.pool.Query(ctx, `
		SELECT pm.id::text, COALESCE(pm.reservation_id::text, ''), COALESCE(r.booking_reference, ''),
			COALESCE(p.full_name, ''), pm.amount::text, pm.currency, pm.payment_status,
			COALESCE(pm.payment_method, ''), pm.created_at`+paymentFrom+` WHERE `+w.String()+
		` ORDER BY pm.created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var amount string
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.Reference, &p.CustomerName, &amount, &p.Currency, &p.Status, &p.Method, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		if p.Amount, err = money.Parse(amount); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// PaymentTotals sums amounts per status over every row matching f. Limit and
// offset are ignored.
func (r *Repository) PaymentTotals(ctx context.Context, f PaymentFilter) (map[status.Payment]decimal.Decimal, error) {
	w := paymentWhere(f)
	rows, err := r.pool.Query(ctx, `
		SELECT pm.payment_status, COALESCE(SUM(pm.amount), 0)::text`+paymentFrom+` WHERE `+w.String()+`
		GROUP BY pm.payment_status`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[status.Payment]decimal.Decimal{}
	for rows.Next() {
		var st status.Payment
		var sum string
		if err := rows.Scan(&st, &sum); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, err
		}
		out[st] = d
	}
	return out, rows.Err()
}

const reviewFrom = `
	FROM reviews rv
	LEFT JOIN user_profiles p ON p.id = rv.user_id`

// ListReviews returns one page of published reviews, newest first.
func (r *Repository) ListReviews(ctx context.Context, f ReviewFilter) ([]Review, int, error) {
	w := &where{}
	w.add("rv.business_id::text = ?", f.BusinessID)
	w.conds = append(w.conds, "rv.is_published")
	if f.Rating > 0 {
		w.add("rv.rating = ?", f.Rating)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+reviewFrom+` WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.Limit, f.Offset)
	rows, err := r.pool.Query(ctx, `
		SELECT rv.id::text, rv.rating, COALESCE(rv.comment, ''), COALESCE(p.full_name, ''), rv.created_at`+
		reviewFrom+` WHERE `+w.String()+` ORDER BY rv.created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.Rating, &rv.Comment, &rv.CustomerName, &rv.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, rv)
	}
	return out, total, rows.Err()
}

// RatingCounts counts published reviews per rating.
func (r *Repository) RatingCounts(ctx context.Context, businessID string) (map[int]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rating, count(*) FROM reviews
		WHERE business_id::text = $1 AND is_published
		GROUP BY rating
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]int{}
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, err
		}
		out[rating] = n
	}
	return out, rows.Err()
}

// DailyMetrics returns the per-day counters from since onwards, oldest first.
func (r *Repository) DailyMetrics(ctx context.Context, businessID string, since time.Time) ([]DailyMetric, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day::text, booked_count, cancelled_count, confirmed_count
		FROM daily_reservation_metrics
		WHERE business_id::text = $1 AND day >= $2::date
		ORDER BY day ASC
	`, businessID, since.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyMetric
	for rows.Next() {
		var m DailyMetric
		if err := rows.Scan(&m.Day, &m.Booked, &m.Cancelled, &m.Confirmed); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BumpDailyMetric adds the deltas to the business's counters for day.
func (r *Repository) BumpDailyMetric(ctx context.Context, businessID, day string, m DailyMetric) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO daily_reservation_metrics (business_id, day, booked_count, cancelled_count, confirmed_count)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (business_id, day)
		DO UPDATE SET booked_count = daily_reservation_metrics.booked_count + EXCLUDED.booked_count,
		              cancelled_count = daily_reservation_metrics.cancelled_count + EXCLUDED.cancelled_count,
		              confirmed_count = daily_reservation_metrics.confirmed_count + EXCLUDED.confirmed_count,
		              updated_at = now()
	`, businessID, day, m.Booked, m.Cancelled, m.Confirmed)
	return err
}
