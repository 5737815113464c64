package templates

import (
	"strings"
	"testing"

	"github.com/bookly-app/bookly/libs/outbox"
)

func TestWhen(t *testing.T) {
	if got := When("2024-06-01", "14:30"); got != "Sat, Jun 1 at 2:30 PM" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := When("soon", ""); got != "soon" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestReservationCreatedNotifiesCustomerAndOwner(t *testing.T) {
	msgs, err := Build(outbox.ReservationCreated, []byte(`{
		"reservation_id":"r1","booking_reference":"BK-123456","business_name":"Cuts",
		"owner_id":"o1","user_id":"u1","customer_email":"c@example.com",
		"service_name":"Haircut","date":"2024-06-01","time":"10:00","total_amount":"45.00"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	customer, owner := msgs[0], msgs[1]
	if customer.UserID != "u1" || !customer.InApp || customer.Email == nil || customer.Email.To != "c@example.com" {
		t.Fatalf("unexpected customer message: %+v", customer)
	}
	if !strings.Contains(customer.Body, "BK-123456") || customer.ReferenceID != "r1" || customer.Type != TypeBooking {
		t.Fatalf("unexpected customer body: %+v", customer)
	}
	if owner.UserID != "o1" || owner.Email != nil {
		t.Fatalf("unexpected owner message: %+v", owner)
	}
}

func TestStatusChanged(t *testing.T) {
	msgs, _ := Build(outbox.ReservationStatusChanged, []byte(`{"reservation_id":"r1","user_id":"u1","owner_id":"o1","to":"confirmed","actor":"payment"}`))
	if len(msgs) != 1 || msgs[0].UserID != "u1" || msgs[0].Title != "Booking confirmed" || msgs[0].Email == nil {
		t.Fatalf("unexpected confirm messages: %+v", msgs)
	}

	msgs, _ = Build(outbox.ReservationStatusChanged, []byte(`{"reservation_id":"r1","user_id":"u1","owner_id":"o1","to":"cancelled","actor":"customer"}`))
	if len(msgs) != 1 || msgs[0].UserID != "o1" {
		t.Fatalf("customer cancel should notify the owner only: %+v", msgs)
	}

	msgs, _ = Build(outbox.ReservationStatusChanged, []byte(`{"reservation_id":"r1","user_id":"u1","to":"cancelled","actor":"scheduler"}`))
	if len(msgs) != 1 || msgs[0].Email != nil {
		t.Fatalf("unexpected expiry messages: %+v", msgs)
	}

	msgs, _ = Build(outbox.ReservationStatusChanged, []byte(`{"reservation_id":"r1","user_id":"u1","to":"pending"}`))
	if len(msgs) != 0 {
		t.Fatalf("expected nothing for pending, got %+v", msgs)
	}
}

func TestPaymentEvents(t *testing.T) {
	msgs, _ := Build(outbox.PaymentSucceeded, []byte(`{"payment_id":"p1","user_id":"u1","owner_id":"o1","amount":"45.00","currency":"usd"}`))
	if len(msgs) != 2 || !strings.Contains(msgs[0].Body, "45.00 USD") || msgs[0].ReferenceType != "payment" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	msgs, _ = Build(outbox.PaymentRefunded, []byte(`{"payment_id":"p1","user_id":"u1","amount":"45.00","currency":"usd"}`))
	if len(msgs) != 1 || msgs[0].Email == nil || msgs[0].Email.To != "" {
		t.Fatalf("refund email should resolve its recipient: %+v", msgs)
	}
}

func TestAccountEmailsAreEmailOnly(t *testing.T) {
	for _, typ := range []string{outbox.PasswordResetRequested, outbox.EmailVerificationSent} {
		msgs, err := Build(typ, []byte(`{"user_id":"u1","email":"a@example.com","link":"https://app/auth/verify?token=x"}`))
		if err != nil || len(msgs) != 1 {
			t.Fatalf("%s: unexpected result %+v %v", typ, msgs, err)
		}
		m := msgs[0]
		if m.InApp || m.Email == nil || m.Email.To != "a@example.com" || !strings.Contains(m.Email.Body, "token=x") {
			t.Fatalf("%s: unexpected message %+v", typ, m)
		}
	}
}

func TestReminderCarriesSMS(t *testing.T) {
	msgs, _ := Build(outbox.ReminderDue, []byte(`{"reservation_id":"r1","user_id":"u1","booking_reference":"BK-1","date":"2024-06-01","time":"09:00"}`))
	if len(msgs) != 1 || msgs[0].SMS == "" || msgs[0].Type != TypeReminder || msgs[0].Email == nil {
		t.Fatalf("unexpected reminder: %+v", msgs)
	}
}

func TestBuildUnknownAndMalformed(t *testing.T) {
	if msgs, err := Build("something.else.v1", []byte(`{}`)); err != nil || msgs != nil {
		t.Fatalf("expected nothing, got %+v %v", msgs, err)
	}
	if _, err := Build(outbox.ReservationCreated, []byte(`{`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
