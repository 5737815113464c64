package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/booking-service/internal/model"
	"github.com/bookly-app/bookly/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

// Actors recorded on status change events.
const (
	ActorOwner    = "owner"
	ActorCustomer = "customer"
	ActorPayment  = "payment"
)

type statusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	list, err := h.repo.ListByUser(r.Context(), userID, 50)
	if err != nil {
		h.logger.Error("list reservations failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	items := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		items = append(items, toResponse(res))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Get returns one reservation to its customer or to the business owner.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	res, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "reservation not found")
			return
		}
		h.logger.Error("get reservation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load reservation")
		return
	}
	if res.UserID != userID && res.OwnerID != userID {
		httpx.WriteError(w, http.StatusForbidden, "not allowed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(res))
}

// UpdateStatus lets the business owner move a reservation along its
// lifecycle.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	to, set, err := status.ParseReservation(req.Status)
	if req.ID == "" || err != nil || !set {
		httpx.WriteError(w, http.StatusBadRequest, "id and a valid status are required")
		return
	}
	h.transition(w, r, req.ID, to, ActorOwner, func(res model.Reservation) bool {
		return res.OwnerID == userID
	})
}

// Cancel lets the customer cancel a pending or confirmed reservation.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "id required")
		return
	}
	h.transition(w, r, req.ID, status.Cancelled, ActorCustomer, func(res model.Reservation) bool {
		return res.UserID == userID
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, id string, to status.Reservation, actor string, allowed func(model.Reservation) bool) {
	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "reservation not found")
			return
		}
		h.logger.Error("load reservation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load reservation")
		return
	}
	if !allowed(res) {
		httpx.WriteError(w, http.StatusForbidden, "not allowed")
		return
	}
	if res.Status == to {
		httpx.WriteJSON(w, http.StatusOK, toResponse(res))
		return
	}

	updated, err := h.applyTransition(ctx, tx, res, to, actor)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			httpx.WriteError(w, http.StatusConflict, "cannot change reservation from "+string(res.Status)+" to "+string(to))
			return
		}
		h.logger.Error("status change failed", "err", err, "reservation_id", id)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update reservation")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(updated))
}

// applyTransition runs the guarded update, frees the slot of a cancelled
// reservation and records the change in the outbox.
func (h *BookingHandler) applyTransition(ctx context.Context, tx pgx.Tx, res model.Reservation, to status.Reservation, actor string) (model.Reservation, error) {
	from := res.Status
	updatedAt, err := h.repo.UpdateStatus(ctx, tx, res.ID, from, to)
	if err != nil {
		return model.Reservation{}, err
	}
	if to == status.Cancelled {
		if err := h.repo.ReleaseSlot(ctx, tx, res.SlotID); err != nil {
			return model.Reservation{}, err
		}
		cancelledAt := updatedAt
		res.CancelledAt = &cancelledAt
	}
	res.Status = to
	res.UpdatedAt = updatedAt

	evt, err := outbox.NewEvent("reservation", res.ID, outbox.ReservationStatusChanged, map[string]any{
		"reservation_id":    res.ID,
		"booking_reference": res.BookingReference,
		"business_id":       res.BusinessID,
		"owner_id":          res.OwnerID,
		"user_id":           res.UserID,
		"service_name":      res.ServiceName,
		"date":              res.Date,
		"time":              res.Time,
		"from":              string(from),
		"to":                string(to),
		"actor":             actor,
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

type paymentEvent struct {
	PaymentID     string `json:"payment_id"`
	ReservationID string `json:"reservation_id"`
}

// ConfirmFromPayment confirms a pending reservation once its payment has
// succeeded. Reservations in any other state are left alone.
func (h *BookingHandler) ConfirmFromPayment(ctx context.Context, msg kafka.Message) error {
	var evt paymentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger.Error("invalid payment event", "err", err, "topic", msg.Topic)
		return nil
	}
	if strings.TrimSpace(evt.ReservationID) == "" {
		h.logger.Warn("payment event without reservation_id", "payment_id", evt.PaymentID)
		return nil
	}

	return h.repo.InTx(ctx, func(tx pgx.Tx) error {
		res, err := h.repo.GetForUpdate(ctx, tx, evt.ReservationID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				h.logger.Warn("payment for unknown reservation", "reservation_id", evt.ReservationID)
				return nil
			}
			return err
		}
		if res.Status != status.Pending {
			h.logger.Info("payment succeeded for non-pending reservation", "reservation_id", res.ID, "status", string(res.Status))
			return nil
		}
		_, err = h.applyTransition(ctx, tx, res, status.Confirmed, ActorPayment)
		if errors.Is(err, storage.ErrInvalidTransition) {
			return nil
		}
		return err
	})
}
