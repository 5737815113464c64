package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/billing-service/internal/payments"
	"github.com/bookly-app/bookly/services/billing-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// settlement is the payment change a provider event asks for.
type settlement struct {
	IntentID string
	To       status.Payment
	RefundID string
}

// settlementFor decodes the Stripe events billing acts on. ok is false for
// event types that carry no payment change.
func settlementFor(evt stripe.Event) (settlement, bool, error) {
	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return settlement{}, false, err
		}
		to := status.PaymentSucceeded
		if evt.Type == "payment_intent.payment_failed" {
			to = status.PaymentFailed
		}
		return settlement{IntentID: pi.ID, To: to}, pi.ID != "", nil
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return settlement{}, false, err
		}
		if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
			return settlement{}, false, nil
		}
		s := settlement{IntentID: ch.PaymentIntent.ID, To: status.PaymentRefunded}
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			s.RefundID = ch.Refunds.Data[0].ID
		}
		return s, true, nil
	}
	return settlement{}, false, nil
}

// StripeWebhook handles Stripe webhooks. The signature is the only
// authentication, so the gateway exposes this path publicly.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.stripeWebhookSecret == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "stripe webhook not configured")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing Stripe-Signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.stripeWebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                h.stripeWebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("billing provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	change, actionable, err := settlementFor(evt)
	if err != nil {
		h.logger.Error("stripe: invalid event payload", "err", err, "event_type", evtType)
		httpx.WriteError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	result, err := h.recordProviderEvent(r, "stripe", evt.ID, evtType, body, func(ctx context.Context, tx pgx.Tx) (string, error) {
		if !actionable {
			return "ignored", nil
		}
		return h.settle(ctx, tx, change, "stripe")
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to apply event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": result})
}

// recordProviderEvent dedupes the delivery, audits it and runs apply in the
// same transaction.
func (h *Handler) recordProviderEvent(r *http.Request, provider, eventID, eventType string, body []byte, apply func(context.Context, pgx.Tx) (string, error)) (string, error) {
	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.InsertProviderEvent(ctx, tx, storage.ProviderEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       eventType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			h.logger.Info("billing provider event duplicate ignored", "provider", provider, "provider_event_id", eventID, "event_type", eventType)
			return "duplicate", nil
		}
		h.logger.Error("record provider event failed", "err", err)
		return "", err
	}

	if err := h.recordAudit(ctx, tx, r, "billing.provider."+provider+".webhook", "provider", "", map[string]any{
		"provider":          provider,
		"provider_event_id": eventID,
		"event_type":        eventType,
	}); err != nil {
		return "", err
	}

	result, err := apply(ctx, tx)
	if err != nil {
		h.logger.Error("apply provider event failed", "err", err, "provider_event_id", eventID)
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return result, nil
}

// settle applies s to the payment behind its intent. Unknown intents and
// moves the status model forbids are acknowledged without change so the
// provider stops retrying.
func (h *Handler) settle(ctx context.Context, tx pgx.Tx, s settlement, source string) (string, error) {
	p, err := h.repo.GetPaymentByIntentForUpdate(ctx, tx, s.IntentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn("provider event for unknown intent", "stripe_payment_id", s.IntentID)
			return "ignored", nil
		}
		return "", err
	}
	changed, err := h.svc.Apply(ctx, tx, &p, payments.Change{To: s.To, Source: source, RefundID: s.RefundID})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			h.logger.Info("provider event ignored", "payment_id", p.ID, "status", string(p.Status), "to", string(s.To))
			return "ignored", nil
		}
		return "", err
	}
	if !changed {
		return "unchanged", nil
	}
	return "ok", nil
}
