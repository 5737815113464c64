package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/bookly-app/bookly/services/business-service/internal/storage"
	"github.com/bookly-app/bookly/services/business-service/internal/validation"
)

type Handler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

// writeValidation answers 422 with the per-field messages of a validation
// error and reports whether err was one.
func writeValidation(w http.ResponseWriter, err error) bool {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return false
	}
	httpx.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": verr.Fields,
	})
	return true
}

// writeStorageError maps repository sentinels to responses.
func (h *Handler) writeStorageError(w http.ResponseWriter, err error, notFound, op string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, storage.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict")
	default:
		h.logger.Error(op+" failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, op+" failed")
	}
}

type businessResponse struct {
	ID            string             `json:"id"`
	OwnerID       string             `json:"owner_id"`
	Name          string             `json:"name"`
	Slug          string             `json:"slug"`
	Description   string             `json:"description"`
	Industry      *industryResponse  `json:"industry,omitempty"`
	Address       string             `json:"address"`
	City          string             `json:"city"`
	State         string             `json:"state,omitempty"`
	PostalCode    string             `json:"postal_code,omitempty"`
	Country       string             `json:"country"`
	Phone         string             `json:"phone"`
	Email         string             `json:"email"`
	Website       string             `json:"website,omitempty"`
	LogoURL       string             `json:"logo_url,omitempty"`
	CoverImageURL string             `json:"cover_image_url,omitempty"`
	PriceLevel    int                `json:"price_level"`
	IsActive      bool               `json:"is_active"`
	IsVerified    bool               `json:"is_verified"`
	Rating        string             `json:"rating"`
	ReviewCount   int                `json:"review_count"`
	CreatedAt     string             `json:"created_at"`
	Services      []serviceResponse  `json:"services,omitempty"`
	Hours         []hoursPayload     `json:"business_hours,omitempty"`
}

type industryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type serviceResponse struct {
	ID              string `json:"id"`
	BusinessID      string `json:"business_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

func toBusinessResponse(b model.Business) businessResponse {
	out := businessResponse{
		ID:            b.ID,
		OwnerID:       b.OwnerID,
		Name:          b.Name,
		Slug:          b.Slug,
		Description:   b.Description,
		Address:       b.Address,
		City:          b.City,
		State:         b.State,
		PostalCode:    b.PostalCode,
		Country:       b.Country,
		Phone:         b.Phone,
		Email:         b.Email,
		Website:       b.Website,
		LogoURL:       b.LogoURL,
		CoverImageURL: b.CoverImageURL,
		PriceLevel:    b.PriceLevel,
		IsActive:      b.IsActive,
		IsVerified:    b.IsVerified,
		Rating:        b.Rating.StringFixed(2),
		ReviewCount:   b.ReviewCount,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.IndustryID != "" {
		out.Industry = &industryResponse{ID: b.IndustryID, Name: b.IndustryName, Slug: b.IndustrySlug}
	}
	return out
}

func toServiceResponse(s model.Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID,
		BusinessID:      s.BusinessID,
		Name:            s.Name,
		Description:     s.Description,
		Price:           money.Format(s.Price),
		DurationMinutes: s.DurationMinutes,
		IsActive:        s.IsActive,
	}
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
