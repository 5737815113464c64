package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/pagination"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/bookly-app/bookly/services/business-service/internal/storage"
	"github.com/bookly-app/bookly/services/business-service/internal/validation"
)

type reviewForm struct {
	BusinessID    string `json:"business_id" validate:"required,uuid"`
	ReservationID string `json:"reservation_id" validate:"omitempty,uuid"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Comment       string `json:"comment" validate:"omitempty,max=2000"`
}

type reviewResponse struct {
	ID            string `json:"id"`
	BusinessID    string `json:"business_id"`
	UserID        string `json:"user_id"`
	ReservationID string `json:"reservation_id,omitempty"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toReviewResponse(rv model.Review) reviewResponse {
	return reviewResponse{
		ID:            rv.ID,
		BusinessID:    rv.BusinessID,
		UserID:        rv.UserID,
		ReservationID: rv.ReservationID,
		Rating:        rv.Rating,
		Comment:       rv.Comment,
		CreatedAt:     rv.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var form reviewForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	form.BusinessID = strings.TrimSpace(form.BusinessID)
	form.ReservationID = strings.TrimSpace(form.ReservationID)
	form.Comment = strings.TrimSpace(form.Comment)
	if err := validation.Struct(form); err != nil {
		if !writeValidation(w, err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		}
		return
	}

	rv := model.Review{
		BusinessID:    form.BusinessID,
		UserID:        userID,
		ReservationID: form.ReservationID,
		Rating:        form.Rating,
		Comment:       form.Comment,
	}
	if err := h.repo.CreateReview(r.Context(), &rv); err != nil {
		switch {
		case errors.Is(err, storage.ErrReservationNotEligible):
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrAlreadyReviewed):
			httpx.WriteError(w, http.StatusConflict, err.Error())
		default:
			h.writeStorageError(w, err, "business not found", "create review")
		}
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toReviewResponse(rv))
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "business_id required")
		return
	}
	page := pagination.FromQuery(r.URL.Query())
	list, total, err := h.repo.ListReviews(r.Context(), businessID, page.Limit, page.Offset())
	if err != nil {
		h.writeStorageError(w, err, "business not found", "list reviews")
		return
	}
	items := make([]reviewResponse, 0, len(list))
	for _, rv := range list {
		items = append(items, toReviewResponse(rv))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"reviews":    items,
		"pagination": pagination.Build(page, total),
	})
}
