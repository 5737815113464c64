// Package reporting holds the pure calculations behind the owner dashboard:
// the month grid, period windows, summary cards and rating distribution.
package reporting

import "time"

const (
	DateLayout = "2006-01-02"
	// GridCells is six weeks of seven days.
	GridCells = 42
)

type Cell struct {
	Date    string
	Day     int
	InMonth bool
	IsToday bool
}

// MonthStart returns midnight of the first day of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd returns the last day of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// Grid lays out the month containing month as 42 cells starting on a
// Sunday. Leading cells come from the previous month and trailing cells
// from the next one.
func Grid(month, today time.Time) []Cell {
	first := MonthStart(month)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	todayKey := today.In(month.Location()).Format(DateLayout)

	cells := make([]Cell, 0, GridCells)
	for i := 0; i < GridCells; i++ {
		d := start.AddDate(0, 0, i)
		key := d.Format(DateLayout)
		cells = append(cells, Cell{
			Date:    key,
			Day:     d.Day(),
			InMonth: d.Month() == first.Month(),
			IsToday: key == todayKey,
		})
	}
	return cells
}

// PrevMonth and NextMonth return the first day of the neighbouring months.
func PrevMonth(t time.Time) string {
	return MonthStart(t).AddDate(0, -1, 0).Format(DateLayout)
}

func NextMonth(t time.Time) string {
	return MonthStart(t).AddDate(0, 1, 0).Format(DateLayout)
}

// MonthName is "January 2025".
func MonthName(t time.Time) string {
	return t.Format("January 2006")
}
