package storage

import (
	"context"
	"fmt"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (r *Repository) ListServices(ctx context.Context, businessID string, activeOnly bool) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, COALESCE(description, ''), price::text, duration_minutes, is_active, created_at
		FROM services
		WHERE business_id = $1 AND (is_active OR NOT $2)
		ORDER BY name ASC
	`, businessID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanService(row pgx.Row) (model.Service, error) {
	var s model.Service
	var price string
	if err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Description, &price, &s.DurationMinutes, &s.IsActive, &s.CreatedAt); err != nil {
		return model.Service{}, err
	}
	p, err := money.Parse(price)
	if err != nil {
		return model.Service{}, fmt.Errorf("service price: %w", err)
	}
	s.Price = p
	return s, nil
}

func (r *Repository) CreateService(ctx context.Context, ownerID string, s *model.Service) error {
	if err := r.checkOwner(ctx, r.pool, s.BusinessID, ownerID); err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (business_id, name, description, price, duration_minutes, is_active)
		VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5, true)
		RETURNING id::text, is_active, created_at
	`, s.BusinessID, s.Name, s.Description, money.Format(s.Price), s.DurationMinutes).Scan(&s.ID, &s.IsActive, &s.CreatedAt)
}

type ServicePatch struct {
	Name            *string
	Description     *string
	Price           *decimal.Decimal
	DurationMinutes *int
	IsActive        *bool
}

func (r *Repository) UpdateService(ctx context.Context, ownerID, serviceID string, p ServicePatch) (model.Service, error) {
	var businessID string
	err := r.pool.QueryRow(ctx, `SELECT business_id::text FROM services WHERE id = $1`, serviceID).Scan(&businessID)
	if err != nil {
		if db.IsNotFound(err) {
			return model.Service{}, ErrNotFound
		}
		return model.Service{}, err
	}
	if err := r.checkOwner(ctx, r.pool, businessID, ownerID); err != nil {
		return model.Service{}, err
	}

	var price *string
	if p.Price != nil {
		v := money.Format(*p.Price)
		price = &v
	}
	return scanService(r.pool.QueryRow(ctx, `
		UPDATE services SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			price = COALESCE($4::numeric, price),
			duration_minutes = COALESCE($5, duration_minutes),
			is_active = COALESCE($6, is_active),
			updated_at = now()
		WHERE id = $1
		RETURNING id::text, business_id::text, name, COALESCE(description, ''), price::text, duration_minutes, is_active, created_at
	`, serviceID, p.Name, p.Description, price, p.DurationMinutes, p.IsActive))
}

func (r *Repository) GetHours(ctx context.Context, businessID string) ([]model.Hours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'), is_closed
		FROM business_hours
		WHERE business_id = $1
		ORDER BY day_of_week ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Hours
	for rows.Next() {
		var h model.Hours
		if err := rows.Scan(&h.DayOfWeek, &h.OpenTime, &h.CloseTime, &h.IsClosed); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ReplaceHours swaps the whole weekly schedule in one transaction.
func (r *Repository) ReplaceHours(ctx context.Context, ownerID, businessID string, hours []model.Hours) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := r.checkOwner(ctx, tx, businessID, ownerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE business_id = $1`, businessID); err != nil {
			return err
		}
		for _, h := range hours {
			if _, err := tx.Exec(ctx, `
				INSERT INTO business_hours (business_id, day_of_week, open_time, close_time, is_closed)
				VALUES ($1, $2, $3::time, $4::time, $5)
			`, businessID, h.DayOfWeek, h.OpenTime, h.CloseTime, h.IsClosed); err != nil {
				return err
			}
		}
		return nil
	})
}
