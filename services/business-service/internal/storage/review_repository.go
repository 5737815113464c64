package storage

import (
	"context"
	"errors"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/jackc/pgx/v5"
)

var (
	ErrReservationNotEligible = errors.New("reservation is not eligible for a review")
	ErrAlreadyReviewed        = errors.New("reservation already reviewed")
)

const reviewReservationConstraint = "reviews_reservation_id_key"

// lockBusinessSQL serialises review writers of one business so each rating
// recompute sees every review committed before it.
const lockBusinessSQL = `SELECT id::text FROM businesses WHERE id = $1 FOR UPDATE`

// CreateReview publishes a review and recomputes the business rating and
// review count in the same transaction.
func (r *Repository) CreateReview(ctx context.Context, rv *model.Review) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return createReview(ctx, tx, rv)
	})
}

func createReview(ctx context.Context, tx pgx.Tx, rv *model.Review) error {
	var locked string
	if err := tx.QueryRow(ctx, lockBusinessSQL, rv.BusinessID).Scan(&locked); err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	if rv.ReservationID != "" {
		var userID, businessID, st string
		err := tx.QueryRow(ctx, `
			SELECT user_id::text, business_id::text, status FROM reservations WHERE id = $1
		`, rv.ReservationID).Scan(&userID, &businessID, &st)
		if err != nil {
			if db.IsNotFound(err) {
				return ErrReservationNotEligible
			}
			return err
		}
		if userID != rv.UserID || businessID != rv.BusinessID || st != "completed" {
			return ErrReservationNotEligible
		}
	}

	var reservationID any
	if rv.ReservationID != "" {
		reservationID = rv.ReservationID
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO reviews (business_id, user_id, reservation_id, rating, comment, is_published)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), true)
		RETURNING id::text, is_published, created_at
	`, rv.BusinessID, rv.UserID, reservationID, rv.Rating, rv.Comment).Scan(&rv.ID, &rv.IsPublished, &rv.CreatedAt)
	if err != nil {
		if db.IsConstraint(err, reviewReservationConstraint) {
			return ErrAlreadyReviewed
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE businesses SET
			rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews WHERE business_id = $1 AND is_published), 0),
			review_count = (SELECT count(*) FROM reviews WHERE business_id = $1 AND is_published),
			updated_at = now()
		WHERE id = $1
	`, rv.BusinessID)
	return err
}

func (r *Repository) ListReviews(ctx context.Context, businessID string, limit, offset int) ([]model.Review, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM reviews WHERE business_id = $1 AND is_published
	`, businessID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, user_id::text, COALESCE(reservation_id::text, ''), rating,
			COALESCE(comment, ''), is_published, created_at
		FROM reviews
		WHERE business_id = $1 AND is_published
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, businessID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.BusinessID, &rv.UserID, &rv.ReservationID, &rv.Rating, &rv.Comment, &rv.IsPublished, &rv.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, rv)
	}
	return out, total, rows.Err()
}
