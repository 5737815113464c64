package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/booking-service/internal/availability"
	"github.com/bookly-app/bookly/services/booking-service/internal/model"
	"github.com/bookly-app/bookly/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

const maxNotesLength = 500

type createReservationRequest struct {
	BusinessID string `json:"business_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	SlotID     string `json:"slot_id"`
	Notes      string `json:"notes"`
}

var (
	errMissingFields = errors.New("business_id, service_id, date and time are required")
	errInvalidDate   = errors.New("invalid date")
	errInvalidTime   = errors.New("invalid time")
	errNotesTooLong  = errors.New("notes must be at most 500 characters")
)

// normalize trims the fields and rewrites date and time in their canonical
// layouts.
func (req *createReservationRequest) normalize() error {
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.BusinessID == "" || req.ServiceID == "" || strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		return errMissingFields
	}
	day, err := availability.ParseDate(req.Date)
	if err != nil {
		return errInvalidDate
	}
	clock, err := availability.ParseClock(req.Time)
	if err != nil {
		return errInvalidTime
	}
	if utf8.RuneCountInString(req.Notes) > maxNotesLength {
		return errNotesTooLong
	}
	req.Date = day.Format(availability.DateLayout)
	req.Time = clock.String()
	return nil
}

func (req createReservationRequest) hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{req.BusinessID, req.ServiceID, req.Date, req.Time, req.SlotID, req.Notes}, "|")))
	return hex.EncodeToString(sum[:])
}

// Create books a service for the calling customer.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}

	var req createReservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.normalize(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, userID, idempotencyKey, req.hash())
		if err != nil {
			h.logger.Error("idempotency lock failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to lock idempotency key")
			return
		}
		if rec.RequestHash != req.hash() {
			httpx.WriteError(w, http.StatusConflict, "idempotency key reused with a different request")
			return
		}
		if exists {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	code, body := h.createInTx(ctx, tx, userID, r.Header.Get(httpx.UserEmailHeader), req)
	if code >= http.StatusInternalServerError {
		httpx.WriteJSON(w, code, body)
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to build response")
		return
	}
	if idempotencyKey != "" {
		reservationID := ""
		if resp, ok := body.(reservationResponse); ok {
			reservationID = resp.ID
		}
		if err := h.repo.FinalizeIdempotency(ctx, tx, userID, idempotencyKey, reservationID, code, payload); err != nil {
			h.logger.Error("idempotency finalize failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to finalize idempotency key")
			return
		}
	} else if code != http.StatusCreated {
		httpx.WriteJSON(w, code, body)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("reservation commit failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

// createInTx runs the booking steps and returns the status code and body to
// answer with. Client errors leave the reservation rows untouched: a failed
// step rolls back to the savepoint taken before it.
func (h *BookingHandler) createInTx(ctx context.Context, tx pgx.Tx, userID, userEmail string, req createReservationRequest) (int, any) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return http.StatusInternalServerError, errorBody("db error")
	}
	defer func() { _ = sp.Rollback(ctx) }()

	svc, err := h.repo.GetService(ctx, sp, req.BusinessID, req.ServiceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return http.StatusNotFound, errorBody("service not found")
		}
		h.logger.Error("service load failed", "err", err)
		return http.StatusInternalServerError, errorBody("failed to load service")
	}
	if !svc.IsActive {
		return http.StatusBadRequest, errorBody("service is not available")
	}

	if req.SlotID != "" {
		switch err := h.repo.ClaimSlot(ctx, sp, req.SlotID, req.BusinessID, req.Date, req.Time); {
		case err == nil:
		case errors.Is(err, storage.ErrSlotTaken):
			return http.StatusConflict, errorBody("slot already booked")
		case errors.Is(err, storage.ErrNotFound):
			return http.StatusNotFound, errorBody("slot not found")
		case errors.Is(err, storage.ErrSlotMismatch):
			return http.StatusBadRequest, errorBody(err.Error())
		default:
			h.logger.Error("slot claim failed", "err", err)
			return http.StatusInternalServerError, errorBody("failed to claim slot")
		}
	}

	res := &model.Reservation{
		BusinessID:  req.BusinessID,
		ServiceID:   req.ServiceID,
		UserID:      userID,
		SlotID:      req.SlotID,
		Date:        req.Date,
		Time:        req.Time,
		Status:      status.Pending,
		TotalAmount: svc.Price,
		Notes:       req.Notes,
	}
	if err := h.repo.Create(ctx, sp, res, h.refs.Next); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return http.StatusConflict, errorBody(err.Error())
		}
		h.logger.Error("reservation insert failed", "err", err)
		return http.StatusInternalServerError, errorBody("failed to create reservation")
	}
	res.ServiceName = svc.Name
	res.BusinessName = svc.BusinessName

	evt, err := outbox.NewEvent("reservation", res.ID, outbox.ReservationCreated, map[string]any{
		"reservation_id":    res.ID,
		"booking_reference": res.BookingReference,
		"business_id":       res.BusinessID,
		"business_name":     svc.BusinessName,
		"owner_id":          svc.OwnerID,
		"service_id":        res.ServiceID,
		"service_name":      svc.Name,
		"user_id":           userID,
		"customer_email":    strings.TrimSpace(userEmail),
		"date":              res.Date,
		"time":              res.Time,
		"status":            string(res.Status),
		"total_amount":      money.Format(res.TotalAmount),
	})
	if err == nil {
		err = h.outboxRepo.Insert(ctx, sp, evt)
	}
	if err != nil {
		h.logger.Error("outbox insert failed", "err", err)
		return http.StatusInternalServerError, errorBody("failed to write outbox event")
	}
	if err := sp.Commit(ctx); err != nil {
		return http.StatusInternalServerError, errorBody("db error")
	}
	return http.StatusCreated, toResponse(*res)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
