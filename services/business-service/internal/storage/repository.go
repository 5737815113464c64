package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/bookly-app/bookly/services/business-service/internal/slug"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not the business owner")
	ErrConflict  = errors.New("conflict")
)

const slugConstraint = "businesses_slug_key"

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const businessColumns = `
	b.id::text, b.owner_id::text, COALESCE(b.industry_id::text, ''), COALESCE(i.name, ''), COALESCE(i.slug, ''),
	b.name, b.slug, b.description, b.address, b.city, COALESCE(b.state, ''), COALESCE(b.postal_code, ''),
	b.country, b.phone, b.email, COALESCE(b.website, ''), COALESCE(b.logo_url, ''), COALESCE(b.cover_image_url, ''),
	b.price_level, b.is_active, b.is_verified, b.rating::text, b.review_count, b.created_at, b.updated_at`

const businessFrom = `
	FROM businesses b
	LEFT JOIN industries i ON i.id = b.industry_id`

func scanBusiness(row pgx.Row) (model.Business, error) {
	var b model.Business
	var rating string
	err := row.Scan(&b.ID, &b.OwnerID, &b.IndustryID, &b.IndustryName, &b.IndustrySlug,
		&b.Name, &b.Slug, &b.Description, &b.Address, &b.City, &b.State, &b.PostalCode,
		&b.Country, &b.Phone, &b.Email, &b.Website, &b.LogoURL, &b.CoverImageURL,
		&b.PriceLevel, &b.IsActive, &b.IsVerified, &rating, &b.ReviewCount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Business{}, err
	}
	if b.Rating, err = decimal.NewFromString(rating); err != nil {
		return model.Business{}, fmt.Errorf("business rating: %w", err)
	}
	return b, nil
}

// CreateBusiness inserts b with a free slug derived from its name. A slug
// taken by a concurrent insert is retried from a savepoint.
func (r *Repository) CreateBusiness(ctx context.Context, tx pgx.Tx, b *model.Business) error {
	base := slug.Make(b.Name)
	for attempt := 0; attempt < 3; attempt++ {
		taken, err := r.slugsLike(ctx, tx, base)
		if err != nil {
			return err
		}
		b.Slug = slug.Next(base, taken)

		err = r.insertBusiness(ctx, tx, b)
		if err == nil {
			return nil
		}
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		if !db.IsConstraint(err, slugConstraint) {
			return err
		}
	}
	return ErrConflict
}

func (r *Repository) slugsLike(ctx context.Context, tx pgx.Tx, base string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT slug FROM businesses WHERE slug = $1 OR slug LIKE $1 || '-%'
	`, base)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) insertBusiness(ctx context.Context, tx pgx.Tx, b *model.Business) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	err = sp.QueryRow(ctx, `
		INSERT INTO businesses
			(owner_id, industry_id, name, slug, description, address, city, state, postal_code, country,
			 phone, email, website, logo_url, cover_image_url, price_level, is_active, is_verified, rating, review_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10,
			$11, $12, NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), $16, true, false, 0, 0)
		RETURNING id::text, created_at, updated_at
	`, b.OwnerID, b.IndustryID, b.Name, b.Slug, b.Description, b.Address, b.City, b.State, b.PostalCode, b.Country,
		b.Phone, b.Email, b.Website, b.LogoURL, b.CoverImageURL, b.PriceLevel).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return err
	}
	b.IsActive = true
	return sp.Commit(ctx)
}

// MarkBusinessOwner flags the user's profile, creating the profile when the
// user has none yet.
func (r *Repository) MarkBusinessOwner(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_profiles (id, is_business_owner)
		VALUES ($1, true)
		ON CONFLICT (id) DO UPDATE SET is_business_owner = true, updated_at = now()
	`, userID)
	return err
}

// GetBusiness looks a business up by id or slug.
func (r *Repository) GetBusiness(ctx context.Context, ref string) (model.Business, error) {
	b, err := scanBusiness(r.pool.QueryRow(ctx, `SELECT `+businessColumns+businessFrom+`
		WHERE b.id::text = $1 OR b.slug = $1
		LIMIT 1`, strings.TrimSpace(ref)))
	if db.IsNotFound(err) {
		return model.Business{}, ErrNotFound
	}
	return b, err
}

// SearchBusinesses returns one page of active businesses and the total
// number of matches.
func (r *Repository) SearchBusinesses(ctx context.Context, f model.SearchFilter) ([]model.Business, int, error) {
	where := []string{"b.is_active"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	if f.Industry != "" && !strings.EqualFold(f.Industry, "all") {
		add("i.slug = ?", f.Industry)
	}
	if f.Location != "" {
		add("(b.city ILIKE ? OR b.state ILIKE ? OR b.country ILIKE ?)", "%"+f.Location+"%")
	}
	if f.Search != "" {
		add("(b.name ILIKE ? OR b.description ILIKE ?)", "%"+f.Search+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+businessFrom+` WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+businessColumns+businessFrom+` WHERE `+cond+
		fmt.Sprintf(` ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// UpdateBusiness applies the non-nil fields of p when ownerID owns the business.
func (r *Repository) UpdateBusiness(ctx context.Context, id, ownerID string, p model.BusinessPatch) (model.Business, error) {
	if err := r.checkOwner(ctx, r.pool, id, ownerID); err != nil {
		return model.Business{}, err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE businesses SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			industry_id = COALESCE($4::uuid, industry_id),
			address = COALESCE($5, address),
			city = COALESCE($6, city),
			state = COALESCE($7, state),
			postal_code = COALESCE($8, postal_code),
			country = COALESCE($9, country),
			phone = COALESCE($10, phone),
			email = COALESCE($11, email),
			website = COALESCE($12, website),
			logo_url = COALESCE($13, logo_url),
			cover_image_url = COALESCE($14, cover_image_url),
			price_level = COALESCE($15, price_level),
			updated_at = now()
		WHERE id = $1
	`, id, p.Name, p.Description, p.IndustryID, p.Address, p.City, p.State, p.PostalCode, p.Country,
		p.Phone, p.Email, p.Website, p.LogoURL, p.CoverImageURL, p.PriceLevel)
	if err != nil {
		return model.Business{}, err
	}
	return r.GetBusiness(ctx, id)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) checkOwner(ctx context.Context, q querier, businessID, userID string) error {
	var owner string
	err := q.QueryRow(ctx, `SELECT owner_id::text FROM businesses WHERE id::text = $1`, businessID).Scan(&owner)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}

func (r *Repository) ListIndustries(ctx context.Context) ([]model.Industry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, slug, COALESCE(description, '')
		FROM industries
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Industry
	for rows.Next() {
		var i model.Industry
		if err := rows.Scan(&i.ID, &i.Name, &i.Slug, &i.Description); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
