package reporting

import (
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/status"
	"github.com/shopspring/decimal"
)

const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// PeriodStart is the lower created_at bound of a payments period. Anything
// other than week, month or year means the last 30 days.
func PeriodStart(period string, now time.Time) time.Time {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -30)
	}
}

type PaymentCards struct {
	TotalRevenue   decimal.Decimal
	PendingAmount  decimal.Decimal
	RefundedAmount decimal.Decimal
}

// Cards builds the payment summary from per-status totals. Revenue counts
// succeeded payments only.
func Cards(totals map[status.Payment]decimal.Decimal) PaymentCards {
	cards := PaymentCards{
		TotalRevenue:   decimal.Zero,
		PendingAmount:  decimal.Zero,
		RefundedAmount: decimal.Zero,
	}
	for st, amount := range totals {
		switch {
		case st.CountsAsRevenue():
			cards.TotalRevenue = cards.TotalRevenue.Add(amount)
		case st == status.PaymentPending:
			cards.PendingAmount = cards.PendingAmount.Add(amount)
		case st == status.PaymentRefunded:
			cards.RefundedAmount = cards.RefundedAmount.Add(amount)
		}
	}
	return cards
}

type RatingBucket struct {
	Rating  int
	Count   int
	Percent int
}

// Distribution returns one bucket per rating from 5 down to 1. Percent is
// rounded to the nearest integer and is 0 when there are no reviews.
func Distribution(counts map[int]int) []RatingBucket {
	total := 0
	for r, n := range counts {
		if r >= 1 && r <= 5 {
			total += n
		}
	}
	out := make([]RatingBucket, 0, 5)
	for r := 5; r >= 1; r-- {
		b := RatingBucket{Rating: r, Count: counts[r]}
		if total > 0 {
			b.Percent = (b.Count*100 + total/2) / total
		}
		out = append(out, b)
	}
	return out
}

// ParseRating reads a rating filter. ok is false for "all", empty or
// anything outside 1..5.
func ParseRating(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 1 || raw[0] < '1' || raw[0] > '5' {
		return 0, false
	}
	return int(raw[0] - '0'), true
}
