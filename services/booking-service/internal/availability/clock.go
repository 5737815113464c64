package availability

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidClock = errors.New("invalid time of day")

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
	LabelLayout = "3:04 PM"
)

var clockLayouts = []string{ClockLayout, "15:04:05", LabelLayout, "3:04PM"}

// Clock is a time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts "15:04", "15:04:05" and "3:04 PM".
func ParseClock(raw string) (Clock, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return Clock{}, ErrInvalidClock
}

func (c Clock) String() string {
	return On(time.Time{}, c).Format(ClockLayout)
}

func (c Clock) Label() string {
	return On(time.Time{}, c).Format(LabelLayout)
}

// On places the clock on day's date in day's location.
func On(day time.Time, c Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

func ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
}

// Label formats a "15:04" value as "3:04 PM". Unparseable input is returned as is.
func Label(clock string) string {
	c, err := ParseClock(clock)
	if err != nil {
		return clock
	}
	return c.Label()
}
