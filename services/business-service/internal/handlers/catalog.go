package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/bookly-app/bookly/services/business-service/internal/storage"
	"github.com/bookly-app/bookly/services/business-service/internal/validation"
	"github.com/shopspring/decimal"
)

type serviceForm struct {
	BusinessID      string          `json:"business_id" validate:"required,uuid"`
	Name            string          `json:"name" validate:"required,min=2"`
	Description     string          `json:"description" validate:"omitempty,max=1000"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,gt=0"`
}

type servicePatchForm struct {
	Name            *string          `json:"name" validate:"omitempty,min=2"`
	Description     *string          `json:"description" validate:"omitempty,max=1000"`
	Price           *decimal.Decimal `json:"price"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,gt=0"`
	IsActive        *bool            `json:"is_active"`
}

var errNegativePrice = &validation.Error{Fields: map[string]string{"price": "must be at least 0"}}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "business_id required")
		return
	}
	list, err := h.repo.ListServices(r.Context(), businessID, true)
	if err != nil {
		h.writeStorageError(w, err, "business not found", "list services")
		return
	}
	items := make([]serviceResponse, 0, len(list))
	for _, s := range list {
		items = append(items, toServiceResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var form serviceForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	form.BusinessID = strings.TrimSpace(form.BusinessID)
	form.Name = strings.TrimSpace(form.Name)
	form.Description = strings.TrimSpace(form.Description)
	if err := validation.Struct(form); err != nil {
		if !writeValidation(w, err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		}
		return
	}
	if form.Price.IsNegative() {
		writeValidation(w, errNegativePrice)
		return
	}

	svc := model.Service{
		BusinessID:      form.BusinessID,
		Name:            form.Name,
		Description:     form.Description,
		Price:           form.Price,
		DurationMinutes: form.DurationMinutes,
	}
	if err := h.repo.CreateService(r.Context(), userID, &svc); err != nil {
		h.writeStorageError(w, err, "business not found", "create service")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toServiceResponse(svc))
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var form servicePatchForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	form.Name = trimPtr(form.Name)
	form.Description = trimPtr(form.Description)
	if err := validation.Struct(form); err != nil {
		if !writeValidation(w, err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		}
		return
	}
	if form.Price != nil && form.Price.IsNegative() {
		writeValidation(w, errNegativePrice)
		return
	}

	svc, err := h.repo.UpdateService(r.Context(), userID, strings.TrimSpace(r.PathValue("id")), storage.ServicePatch{
		Name:            form.Name,
		Description:     form.Description,
		Price:           form.Price,
		DurationMinutes: form.DurationMinutes,
		IsActive:        form.IsActive,
	})
	if err != nil {
		h.writeStorageError(w, err, "service not found", "update service")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toServiceResponse(svc))
}

type hoursPayload struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	IsClosed  bool   `json:"is_closed"`
}

type hoursForm struct {
	Hours []hoursPayload `json:"hours" validate:"len=7,dive"`
}

func toHoursPayload(h model.Hours) hoursPayload {
	return hoursPayload{DayOfWeek: h.DayOfWeek, OpenTime: h.OpenTime, CloseTime: h.CloseTime, IsClosed: h.IsClosed}
}

var errHoursDays = errors.New("each day_of_week 0..6 must appear once")

// checkHours validates clock values and the one-row-per-day rule that the
// struct tags cannot express.
func checkHours(rows []hoursPayload) (map[string]string, error) {
	fields := map[string]string{}
	seen := map[int]bool{}
	for i, row := range rows {
		if seen[row.DayOfWeek] {
			return nil, errHoursDays
		}
		seen[row.DayOfWeek] = true
		if row.IsClosed {
			continue
		}
		open, errOpen := parseClock(row.OpenTime)
		closeAt, errClose := parseClock(row.CloseTime)
		switch {
		case errOpen != nil:
			fields[hoursKey(i, "open_time")] = "must be a time like 09:00"
		case errClose != nil:
			fields[hoursKey(i, "close_time")] = "must be a time like 17:00"
		case !open.Before(closeAt):
			fields[hoursKey(i, "close_time")] = "must be after open_time"
		}
	}
	return fields, nil
}

func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "business_id required")
		return
	}
	hours, err := h.repo.GetHours(r.Context(), businessID)
	if err != nil {
		h.writeStorageError(w, err, "business not found", "get hours")
		return
	}
	items := make([]hoursPayload, 0, len(hours))
	for _, hr := range hours {
		items = append(items, toHoursPayload(hr))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) ReplaceHours(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "business_id required")
		return
	}
	var form hoursForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validation.Struct(form); err != nil {
		if !writeValidation(w, err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		}
		return
	}
	fields, err := checkHours(form.Hours)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(fields) > 0 {
		writeValidation(w, &validation.Error{Fields: fields})
		return
	}

	rows := make([]model.Hours, 0, len(form.Hours))
	for _, hr := range form.Hours {
		row := model.Hours{DayOfWeek: hr.DayOfWeek, OpenTime: hr.OpenTime, CloseTime: hr.CloseTime, IsClosed: hr.IsClosed}
		if row.IsClosed && (row.OpenTime == "" || row.CloseTime == "") {
			row.OpenTime, row.CloseTime = "00:00", "00:00"
		}
		rows = append(rows, row)
	}
	if err := h.repo.ReplaceHours(r.Context(), userID, businessID, rows); err != nil {
		h.writeStorageError(w, err, "business not found", "replace hours")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
