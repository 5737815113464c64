package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bookly-app/bookly/libs/status"
	"github.com/stripe/stripe-go/v79"
)

func TestNewPicksLocalWithoutKey(t *testing.T) {
	if _, ok := New("  ").(Local); !ok {
		t.Fatal("expected local processor without a key")
	}
}

func TestLocalIntent(t *testing.T) {
	p := Local{}
	in, err := p.CreateIntent(context.Background(), IntentRequest{ReservationID: "r1", AmountMinor: 4500, Currency: "usd"})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if !strings.HasPrefix(in.ID, LocalPrefix) || in.ClientSecret == "" || in.Status != status.PaymentPending {
		t.Fatalf("unexpected intent %+v", in)
	}
	again, err := p.GetIntent(context.Background(), in.ID)
	if err != nil || again.ClientSecret != in.ClientSecret {
		t.Fatalf("GetIntent mismatch: %+v %v", again, err)
	}
	if _, err := p.GetIntent(context.Background(), "pi_3Nabc"); !errors.Is(err, ErrLocalIntent) {
		t.Fatalf("expected ErrLocalIntent, got %v", err)
	}
	refundID, err := p.Refund(context.Background(), in.ID)
	if err != nil || !strings.HasPrefix(refundID, "re_local_") {
		t.Fatalf("unexpected refund %q %v", refundID, err)
	}
}

func TestStripeSkipsLocalIntents(t *testing.T) {
	if _, err := (Stripe{}).GetIntent(context.Background(), LocalPrefix+"x"); !errors.Is(err, ErrLocalIntent) {
		t.Fatalf("expected ErrLocalIntent, got %v", err)
	}
}

func TestStatusFromIntent(t *testing.T) {
	cases := []struct {
		pi   *stripe.PaymentIntent
		want status.Payment
	}{
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusSucceeded}, status.PaymentSucceeded},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled}, status.PaymentFailed},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, status.PaymentPending},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod, LastPaymentError: &stripe.Error{Msg: "declined"}}, status.PaymentFailed},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusProcessing}, status.PaymentPending},
	}
	for _, tc := range cases {
		if got := StatusFromIntent(tc.pi); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.pi.Status, got, tc.want)
		}
	}
}
