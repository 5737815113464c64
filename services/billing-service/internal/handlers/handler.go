package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/billing-service/internal/payments"
	"github.com/bookly-app/bookly/services/billing-service/internal/processor"
	"github.com/bookly-app/bookly/services/billing-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

type Handler struct {
	repo                   *storage.Repository
	outboxRepo             *outbox.Repository
	svc                    *payments.Service
	proc                   processor.Processor
	logger                 *slog.Logger
	currency               string
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
	localWebhookEnabled    bool
}

type Config struct {
	Currency                      string
	StripeWebhookSecret           string
	StripeWebhookToleranceSeconds int
	LocalWebhookEnabled           bool
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, proc processor.Processor, logger *slog.Logger, cfg Config) *Handler {
	tolSeconds := cfg.StripeWebhookToleranceSeconds
	if tolSeconds <= 0 {
		tolSeconds = 300
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Handler{
		repo:                   repo,
		outboxRepo:             outboxRepo,
		svc:                    payments.New(repo, outboxRepo),
		proc:                   proc,
		logger:                 logger,
		currency:               currency,
		stripeWebhookSecret:    strings.TrimSpace(cfg.StripeWebhookSecret),
		stripeWebhookTolerance: time.Duration(tolSeconds) * time.Second,
		localWebhookEnabled:    cfg.LocalWebhookEnabled,
	}
}

type paymentResponse struct {
	ID              string `json:"id"`
	ReservationID   string `json:"reservation_id"`
	BusinessID      string `json:"business_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"payment_status"`
	Color           string `json:"status_color"`
	Method          string `json:"payment_method,omitempty"`
	StripePaymentID string `json:"stripe_payment_id"`
	StripeRefundID  string `json:"stripe_refund_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toResponse(p storage.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		ReservationID:   p.ReservationID,
		BusinessID:      p.BusinessID,
		Amount:          money.Format(p.Amount),
		Currency:        p.Currency,
		Status:          string(p.Status),
		Color:           string(p.Status.Color()),
		Method:          p.Method,
		StripePaymentID: p.StripePaymentID,
		StripeRefundID:  p.StripeRefundID,
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	httpx.WriteJSON(w, code, v)
}

func (h *Handler) recordAudit(ctx context.Context, tx pgx.Tx, r *http.Request, eventType string, actorType string, businessID string, metadata map[string]any) error {
	if actorType == "" {
		actorType = "system"
	}
	actorID := httpx.UserID(r)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if reqID := httpx.RequestIDFromContext(r.Context()); reqID != "" {
		metadata["request_id"] = reqID
	}
	raw, _ := json.Marshal(metadata)
	return h.repo.InsertAuditEvent(ctx, tx, storage.AuditEvent{
		EventType:  eventType,
		ActorType:  actorType,
		ActorID:    actorID,
		BusinessID: businessID,
		Metadata:   raw,
	})
}
