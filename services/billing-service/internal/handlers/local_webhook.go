package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/billing-service/internal/processor"
	"github.com/jackc/pgx/v5"
)

type localWebhookRequest struct {
	EventID  string `json:"event_id"`
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

// LocalWebhook settles local intents in environments without Stripe. It is
// mounted only when enabled and only settles intents the local processor
// created.
func (h *Handler) LocalWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.localWebhookEnabled {
		httpx.WriteError(w, http.StatusNotFound, "local webhook disabled")
		return
	}
	var req localWebhookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.EventID = strings.TrimSpace(req.EventID)
	req.IntentID = strings.TrimSpace(req.IntentID)
	if req.EventID == "" || req.IntentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "event_id and intent_id are required")
		return
	}
	if !strings.HasPrefix(req.IntentID, processor.LocalPrefix) {
		httpx.WriteError(w, http.StatusBadRequest, "intent_id is not a local intent")
		return
	}
	to, ok, err := status.ParsePayment(req.Status)
	if err != nil || !ok || to == status.PaymentPending {
		httpx.WriteError(w, http.StatusBadRequest, "status must be succeeded, failed or refunded")
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to encode event")
		return
	}
	change := settlement{IntentID: req.IntentID, To: to}
	result, err := h.recordProviderEvent(r, "local", req.EventID, "payment."+string(to), body, func(ctx context.Context, tx pgx.Tx) (string, error) {
		return h.settle(ctx, tx, change, "local")
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to apply event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": result})
}
