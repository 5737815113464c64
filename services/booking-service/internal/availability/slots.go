package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

// Hours is one weekday row of business_hours, with clock values as "15:04".
type Hours struct {
	DayOfWeek int
	OpenTime  string
	CloseTime string
	IsClosed  bool
}

// Reserved is a time already held by an active reservation on the day.
type Reserved struct {
	Time     string
	Duration time.Duration
}

// FromHours generates the open slots of day from its weekly hours row. Slots
// last duration and start every step. Reserved times block the slots they
// overlap.
func FromHours(day time.Time, hours Hours, duration, step time.Duration, reserved []Reserved, now time.Time) ([]time.Time, error) {
	if hours.IsClosed {
		return nil, nil
	}
	open, err := ParseClock(hours.OpenTime)
	if err != nil {
		return nil, err
	}
	closeAt, err := ParseClock(hours.CloseTime)
	if err != nil {
		return nil, err
	}

	busy := make([]Interval, 0, len(reserved))
	for _, r := range reserved {
		c, err := ParseClock(r.Time)
		if err != nil {
			continue
		}
		start := On(day, c)
		d := r.Duration
		if d <= 0 {
			d = duration
		}
		busy = append(busy, Interval{Start: start, End: start.Add(d)})
	}
	return AvailableSlots(On(day, open), On(day, closeAt), duration, step, busy, now), nil
}
