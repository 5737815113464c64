package status

import (
	"errors"
	"testing"
)

func TestReservationColors(t *testing.T) {
	cases := map[Reservation]Color{
		Confirmed:         Green,
		Pending:           Yellow,
		Cancelled:         Red,
		Completed:         Blue,
		NoShow:            Gray,
		Reservation("??"): Gray,
	}
	for s, want := range cases {
		if got := s.Color(); got != want {
			t.Errorf("%q.Color() = %q, want %q", s, got, want)
		}
	}
}

func TestPaymentColors(t *testing.T) {
	cases := map[Payment]Color{
		PaymentSucceeded: Green,
		PaymentPending:   Yellow,
		PaymentFailed:    Red,
		PaymentRefunded:  Blue,
		Payment("void"):  Gray,
	}
	for p, want := range cases {
		if got := p.Color(); got != want {
			t.Errorf("%q.Color() = %q, want %q", p, got, want)
		}
	}
}

func TestLabels(t *testing.T) {
	if NoShow.Label() != "No-show" || Pending.Label() != "Pending" {
		t.Fatalf("unexpected labels %q %q", NoShow.Label(), Pending.Label())
	}
	if b := PaymentRefunded.Badge(); b.Label != "Refunded" || b.Color != Blue || b.Value != "refunded" {
		t.Fatalf("unexpected badge %+v", b)
	}
}

func TestParseReservation(t *testing.T) {
	if _, ok, err := ParseReservation("all"); ok || err != nil {
		t.Fatalf("all should mean no filter")
	}
	if _, ok, err := ParseReservation(""); ok || err != nil {
		t.Fatalf("empty should mean no filter")
	}
	s, ok, err := ParseReservation("No-Show")
	if err != nil || !ok || s != NoShow {
		t.Fatalf("got %q %v %v", s, ok, err)
	}
	if _, _, err := ParseReservation("archived"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestParsePayment(t *testing.T) {
	p, ok, err := ParsePayment("refunded")
	if err != nil || !ok || p != PaymentRefunded {
		t.Fatalf("got %q %v %v", p, ok, err)
	}
	if _, _, err := ParsePayment("chargeback"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus")
	}
}

func TestReservationTransitions(t *testing.T) {
	allowed := [][2]Reservation{
		{Pending, Confirmed},
		{Pending, Cancelled},
		{Confirmed, Completed},
		{Confirmed, Cancelled},
		{Confirmed, NoShow},
		{Completed, Completed},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]Reservation{
		{Completed, Pending},
		{Cancelled, Confirmed},
		{NoShow, Completed},
		{Pending, Completed},
		{Pending, NoShow},
		{Pending, Reservation("bogus")},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("expected %s -> %s to be denied", tr[0], tr[1])
		}
	}
	if err := CheckTransition(Completed, Pending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPaymentTransitions(t *testing.T) {
	if !CanTransitionPayment(PaymentPending, PaymentSucceeded) || !CanTransitionPayment(PaymentFailed, PaymentSucceeded) {
		t.Fatalf("expected success transitions allowed")
	}
	if !CanTransitionPayment(PaymentSucceeded, PaymentRefunded) {
		t.Fatalf("expected refund allowed")
	}
	if CanTransitionPayment(PaymentRefunded, PaymentSucceeded) || CanTransitionPayment(PaymentPending, PaymentRefunded) {
		t.Fatalf("unexpected transitions allowed")
	}
}

func TestTerminalAndActive(t *testing.T) {
	for _, s := range []Reservation{Completed, Cancelled, NoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if Pending.Terminal() || Confirmed.Terminal() {
		t.Fatalf("pending and confirmed are not terminal")
	}
	if Cancelled.Active() || !NoShow.Active() {
		t.Fatalf("only cancelled releases the slot")
	}
	if !PaymentSucceeded.CountsAsRevenue() || PaymentRefunded.CountsAsRevenue() {
		t.Fatalf("revenue predicate wrong")
	}
}
