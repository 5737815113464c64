package reporting

import (
	"testing"
	"time"

	"github.com/bookly-app/bookly/libs/status"
	"github.com/shopspring/decimal"
)

func TestGridHasSixWeeksStartingSunday(t *testing.T) {
	// June 2024 starts on a Saturday.
	month := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	cells := Grid(month, today)
	if len(cells) != GridCells {
		t.Fatalf("expected %d cells, got %d", GridCells, len(cells))
	}
	if cells[0].Date != "2024-05-26" || cells[0].InMonth {
		t.Fatalf("unexpected first cell: %+v", cells[0])
	}
	if cells[6].Date != "2024-06-01" || !cells[6].InMonth || cells[6].Day != 1 {
		t.Fatalf("unexpected first in-month cell: %+v", cells[6])
	}
	last := cells[GridCells-1]
	if last.Date != "2024-07-06" || last.InMonth {
		t.Fatalf("unexpected last cell: %+v", last)
	}
	var todays, inMonth int
	for _, c := range cells {
		if c.IsToday {
			todays++
			if c.Date != "2024-06-03" {
				t.Fatalf("wrong today cell: %+v", c)
			}
		}
		if c.InMonth {
			inMonth++
		}
	}
	if todays != 1 || inMonth != 30 {
		t.Fatalf("expected 1 today and 30 in-month cells, got %d and %d", todays, inMonth)
	}
	for i, c := range cells {
		d, err := time.Parse(DateLayout, c.Date)
		if err != nil {
			t.Fatalf("cell %d: %v", i, err)
		}
		if int(d.Weekday()) != i%7 {
			t.Fatalf("cell %d (%s) falls on %s", i, c.Date, d.Weekday())
		}
	}
}

func TestGridMonthStartingSunday(t *testing.T) {
	// September 2024 starts on a Sunday, so there are no leading days.
	cells := Grid(time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if cells[0].Date != "2024-09-01" || !cells[0].InMonth {
		t.Fatalf("unexpected first cell: %+v", cells[0])
	}
}

func TestMonthNavigation(t *testing.T) {
	d := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	if got := PrevMonth(d); got != "2023-12-01" {
		t.Fatalf("prev month: %s", got)
	}
	if got := NextMonth(d); got != "2024-02-01" {
		t.Fatalf("next month: %s", got)
	}
	if got := MonthEnd(time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)).Format(DateLayout); got != "2024-02-29" {
		t.Fatalf("month end: %s", got)
	}
	if got := MonthName(d); got != "January 2024" {
		t.Fatalf("month name: %s", got)
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"week":  time.Date(2024, time.June, 8, 12, 0, 0, 0, time.UTC),
		"month": time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC),
		"year":  time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC),
		"":      time.Date(2024, time.May, 16, 12, 0, 0, 0, time.UTC),
		"bogus": time.Date(2024, time.May, 16, 12, 0, 0, 0, time.UTC),
	}
	for period, want := range cases {
		if got := PeriodStart(period, now); !got.Equal(want) {
			t.Errorf("period %q: expected %s, got %s", period, want, got)
		}
	}
}

func TestCards(t *testing.T) {
	cards := Cards(map[status.Payment]decimal.Decimal{
		status.PaymentSucceeded: decimal.RequireFromString("90.00"),
		status.PaymentPending:   decimal.RequireFromString("45.00"),
		status.PaymentRefunded:  decimal.RequireFromString("20.50"),
		status.PaymentFailed:    decimal.RequireFromString("10.00"),
	})
	if cards.TotalRevenue.StringFixed(2) != "90.00" {
		t.Fatalf("revenue: %s", cards.TotalRevenue)
	}
	if cards.PendingAmount.StringFixed(2) != "45.00" {
		t.Fatalf("pending: %s", cards.PendingAmount)
	}
	if cards.RefundedAmount.StringFixed(2) != "20.50" {
		t.Fatalf("refunded: %s", cards.RefundedAmount)
	}
	empty := Cards(nil)
	if !empty.TotalRevenue.IsZero() || !empty.PendingAmount.IsZero() || !empty.RefundedAmount.IsZero() {
		t.Fatalf("expected zero cards, got %+v", empty)
	}
}

func TestDistribution(t *testing.T) {
	got := Distribution(map[int]int{5: 2, 4: 1, 1: 1})
	if len(got) != 5 || got[0].Rating != 5 || got[4].Rating != 1 {
		t.Fatalf("unexpected buckets: %+v", got)
	}
	if got[0].Count != 2 || got[0].Percent != 50 {
		t.Fatalf("unexpected 5-star bucket: %+v", got[0])
	}
	if got[1].Percent != 25 || got[2].Count != 0 || got[2].Percent != 0 {
		t.Fatalf("unexpected buckets: %+v", got)
	}
	for _, b := range Distribution(nil) {
		if b.Count != 0 || b.Percent != 0 {
			t.Fatalf("expected empty bucket, got %+v", b)
		}
	}
}

func TestParseRating(t *testing.T) {
	for raw, want := range map[string]int{"1": 1, " 5 ": 5} {
		got, ok := ParseRating(raw)
		if !ok || got != want {
			t.Fatalf("%q: expected %d, got %d ok=%v", raw, want, got, ok)
		}
	}
	for _, raw := range []string{"", "all", "0", "6", "12", "x"} {
		if _, ok := ParseRating(raw); ok {
			t.Fatalf("%q: expected no filter", raw)
		}
	}
}
