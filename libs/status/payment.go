package status

import "strings"

type Payment string

const (
	PaymentPending   Payment = "pending"
	PaymentSucceeded Payment = "succeeded"
	PaymentFailed    Payment = "failed"
	PaymentRefunded  Payment = "refunded"
)

var PaymentStatuses = []Payment{PaymentPending, PaymentSucceeded, PaymentFailed, PaymentRefunded}

var paymentTransitions = transitions[Payment]{
	PaymentPending:   set(PaymentSucceeded, PaymentFailed),
	PaymentFailed:    set(PaymentSucceeded),
	PaymentSucceeded: set(PaymentRefunded),
}

func (p Payment) Valid() bool {
	for _, v := range PaymentStatuses {
		if p == v {
			return true
		}
	}
	return false
}

func (p Payment) Color() Color {
	switch p {
	case PaymentSucceeded:
		return Green
	case PaymentPending:
		return Yellow
	case PaymentFailed:
		return Red
	case PaymentRefunded:
		return Blue
	default:
		return Gray
	}
}

func (p Payment) Label() string {
	if p == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

func (p Payment) Badge() Badge {
	return Badge{Value: string(p), Label: p.Label(), Color: p.Color()}
}

// CountsAsRevenue is true only for succeeded payments.
func (p Payment) CountsAsRevenue() bool {
	return p == PaymentSucceeded
}

func ParsePayment(raw string) (p Payment, ok bool, err error) {
	if isAll(raw) {
		return "", false, nil
	}
	p = Payment(strings.TrimSpace(strings.ToLower(raw)))
	if !p.Valid() {
		return "", false, ErrUnknownStatus
	}
	return p, true, nil
}

func CanTransitionPayment(from, to Payment) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return paymentTransitions.allowed(from, to)
}
