// Package processor talks to the card processor. Without a Stripe key a
// local processor records intents that the local webhook settles.
package processor

import (
	"context"
	"errors"
	"strings"

	"github.com/bookly-app/bookly/libs/status"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
)

// LocalPrefix marks intents that never reached Stripe.
const LocalPrefix = "pi_local_"

var ErrLocalIntent = errors.New("local intent has no remote state")

type IntentRequest struct {
	ReservationID string
	BusinessID    string
	UserID        string
	AmountMinor   int64
	Currency      string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       status.Payment
}

type Processor interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
	Refund(ctx context.Context, intentID string) (string, error)
}

// New returns the Stripe processor when secretKey is set, otherwise the local
// one.
func New(secretKey string) Processor {
	if key := strings.TrimSpace(secretKey); key != "" {
		stripe.Key = key
		return Stripe{}
	}
	return Local{}
}

type Stripe struct{}

func (Stripe) Name() string { return "stripe" }

func (Stripe) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("reservation_id", req.ReservationID)
	params.AddMetadata("business_id", req.BusinessID)
	params.AddMetadata("user_id", req.UserID)
	params.SetIdempotencyKey("intent-" + req.ReservationID + "-" + req.Currency)

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: StatusFromIntent(pi)}, nil
}

func (Stripe) GetIntent(ctx context.Context, id string) (Intent, error) {
	if strings.HasPrefix(id, LocalPrefix) {
		return Intent{}, ErrLocalIntent
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: StatusFromIntent(pi)}, nil
}

func (Stripe) Refund(ctx context.Context, intentID string) (string, error) {
	if strings.HasPrefix(intentID, LocalPrefix) {
		return Local{}.Refund(ctx, intentID)
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + intentID)
	re, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return re.ID, nil
}

// StatusFromIntent maps a Stripe intent onto the payment status model. An
// intent back in requires_payment_method after an attempt has failed.
func StatusFromIntent(pi *stripe.PaymentIntent) status.Payment {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return status.PaymentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return status.PaymentFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return status.PaymentFailed
		}
	}
	return status.PaymentPending
}

type Local struct{}

func (Local) Name() string { return "local" }

func (Local) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	id := LocalPrefix + uuid.NewString()
	return Intent{ID: id, ClientSecret: id + "_secret_local", Status: status.PaymentPending}, nil
}

func (Local) GetIntent(_ context.Context, id string) (Intent, error) {
	if !strings.HasPrefix(id, LocalPrefix) {
		return Intent{}, ErrLocalIntent
	}
	return Intent{ID: id, ClientSecret: id + "_secret_local", Status: status.PaymentPending}, nil
}

func (Local) Refund(_ context.Context, _ string) (string, error) {
	return "re_local_" + uuid.NewString(), nil
}
