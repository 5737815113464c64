// Package payments applies payment status changes and their outbox events.
// Webhooks, refunds and the reconciler all go through it.
package payments

import (
	"context"
	"fmt"

	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/billing-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository) *Service {
	return &Service{repo: repo, outboxRepo: outboxRepo}
}

// Change describes a requested status move for a locked payment.
type Change struct {
	To       status.Payment
	Source   string
	RefundID string
}

// EventType returns the outbox event emitted when a payment enters s, or ""
// when entering s emits nothing.
func EventType(s status.Payment) string {
	switch s {
	case status.PaymentSucceeded:
		return outbox.PaymentSucceeded
	case status.PaymentFailed:
		return outbox.PaymentFailed
	case status.PaymentRefunded:
		return outbox.PaymentRefunded
	}
	return ""
}

// Apply moves p to c.To inside tx. A payment already in c.To is left alone
// and reports false. A move the status model forbids gives
// storage.ErrInvalidTransition.
func (s *Service) Apply(ctx context.Context, tx pgx.Tx, p *storage.Payment, c Change) (bool, error) {
	if p.Status == c.To {
		return false, nil
	}
	if !status.CanTransitionPayment(p.Status, c.To) {
		return false, fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, p.Status, c.To)
	}
	updatedAt, err := s.repo.UpdateStatus(ctx, tx, p.ID, p.Status, c.To, c.RefundID)
	if err != nil {
		return false, err
	}
	from := p.Status
	p.Status = c.To
	p.UpdatedAt = updatedAt
	if c.RefundID != "" {
		p.StripeRefundID = c.RefundID
	}

	eventType := EventType(c.To)
	if eventType == "" {
		return true, nil
	}
	evt, err := outbox.NewEvent("payment", p.ID, eventType, map[string]any{
		"payment_id":        p.ID,
		"reservation_id":    p.ReservationID,
		"business_id":       p.BusinessID,
		"user_id":           p.UserID,
		"owner_id":          p.OwnerID,
		"amount":            money.Format(p.Amount),
		"currency":          p.Currency,
		"from":              string(from),
		"status":            string(c.To),
		"source":            c.Source,
		"stripe_payment_id": p.StripePaymentID,
		"stripe_refund_id":  p.StripeRefundID,
	})
	if err != nil {
		return false, err
	}
	if err := s.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return false, err
	}
	return true, nil
}
