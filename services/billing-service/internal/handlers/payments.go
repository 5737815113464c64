package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/billing-service/internal/payments"
	"github.com/bookly-app/bookly/services/billing-service/internal/processor"
	"github.com/bookly-app/bookly/services/billing-service/internal/storage"
)

type intentRequest struct {
	ReservationID string `json:"reservation_id"`
}

type intentResponse struct {
	Payment      paymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret"`
	Processor    string          `json:"processor"`
}

// CreateIntent opens a payment for the caller's pending reservation. Asking
// again for the same reservation returns the open intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var req intentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if req.ReservationID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "reservation_id is required")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := h.repo.GetReservation(ctx, tx, req.ReservationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "reservation not found")
			return
		}
		h.logger.Error("load reservation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load reservation")
		return
	}
	if res.UserID != userID {
		httpx.WriteError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if res.Status != status.Pending {
		httpx.WriteError(w, http.StatusConflict, "reservation is not pending")
		return
	}
	amountMinor := money.MinorUnits(res.TotalAmount)
	if amountMinor <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "reservation has nothing to pay")
		return
	}

	if open, found, err := h.repo.PendingForReservation(ctx, tx, res.ID); err != nil {
		h.logger.Error("load open payment failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load payment")
		return
	} else if found {
		intent, err := h.proc.GetIntent(ctx, open.StripePaymentID)
		if err != nil {
			h.logger.Error("load intent failed", "err", err, "stripe_payment_id", open.StripePaymentID)
			httpx.WriteError(w, http.StatusBadGateway, "payment processor unavailable")
			return
		}
		_ = tx.Commit(ctx)
		writeJSON(w, http.StatusOK, intentResponse{Payment: toResponse(open), ClientSecret: intent.ClientSecret, Processor: h.proc.Name()})
		return
	}

	intent, err := h.proc.CreateIntent(ctx, processor.IntentRequest{
		ReservationID: res.ID,
		BusinessID:    res.BusinessID,
		UserID:        res.UserID,
		AmountMinor:   amountMinor,
		Currency:      h.currency,
	})
	if err != nil {
		h.logger.Error("create intent failed", "err", err, "reservation_id", res.ID)
		httpx.WriteError(w, http.StatusBadGateway, "payment processor unavailable")
		return
	}

	p := storage.Payment{
		ReservationID:   res.ID,
		BusinessID:      res.BusinessID,
		UserID:          res.UserID,
		OwnerID:         res.OwnerID,
		Amount:          res.TotalAmount,
		Currency:        h.currency,
		Status:          status.PaymentPending,
		Method:          "card",
		StripePaymentID: intent.ID,
	}
	if err := h.repo.InsertPayment(ctx, tx, &p); err != nil {
		if errors.Is(err, storage.ErrPendingExists) {
			httpx.WriteError(w, http.StatusConflict, "payment already in progress")
			return
		}
		h.logger.Error("insert payment failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record payment")
		return
	}
	if err := h.recordAudit(ctx, tx, r, "billing.payment.intent_created", "customer", res.BusinessID, map[string]any{
		"payment_id":        p.ID,
		"reservation_id":    res.ID,
		"stripe_payment_id": intent.ID,
		"processor":         h.proc.Name(),
	}); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record audit event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	writeJSON(w, http.StatusCreated, intentResponse{Payment: toResponse(p), ClientSecret: intent.ClientSecret, Processor: h.proc.Name()})
}

type refundRequest struct {
	PaymentID string `json:"payment_id"`
}

// Refund returns a succeeded payment. Only the business owner may refund.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "payment_id is required")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := h.repo.GetPaymentForUpdate(ctx, tx, req.PaymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "payment not found")
			return
		}
		h.logger.Error("load payment failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load payment")
		return
	}
	if p.OwnerID != userID {
		httpx.WriteError(w, http.StatusForbidden, "only the business owner can refund")
		return
	}
	if p.Status != status.PaymentSucceeded {
		httpx.WriteError(w, http.StatusConflict, "only succeeded payments can be refunded")
		return
	}

	refundID, err := h.proc.Refund(ctx, p.StripePaymentID)
	if err != nil {
		h.logger.Error("refund failed", "err", err, "payment_id", p.ID)
		httpx.WriteError(w, http.StatusBadGateway, "payment processor unavailable")
		return
	}
	if _, err := h.svc.Apply(ctx, tx, &p, payments.Change{To: status.PaymentRefunded, Source: "owner", RefundID: refundID}); err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			httpx.WriteError(w, http.StatusConflict, "payment changed concurrently")
			return
		}
		h.logger.Error("apply refund failed", "err", err, "payment_id", p.ID)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record refund")
		return
	}
	if err := h.recordAudit(ctx, tx, r, "billing.payment.refunded", "owner", p.BusinessID, map[string]any{
		"payment_id":       p.ID,
		"stripe_refund_id": refundID,
	}); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to record audit event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// List returns the caller's payments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	list, err := h.repo.ListForUser(r.Context(), userID, strings.TrimSpace(r.URL.Query().Get("reservation_id")))
	if err != nil {
		h.logger.Error("list payments failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list payments")
		return
	}
	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}
