package availability

import (
	"errors"
	"testing"
	"time"
)

func TestAvailableSlots_Basic(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	windowStart := time.Date(2026, 1, 28, 9, 0, 0, 0, loc)
	windowEnd := time.Date(2026, 1, 28, 10, 0, 0, 0, loc)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 15*time.Minute, 15*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected only 09:45, got %v", slots)
	}
}

func TestAvailableSlots_LastSlotFitsWindow(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 45*time.Minute, 15*time.Minute, nil, day)
	// 09:00 and 09:15 end by 10:00; 09:30 would not.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
}

func TestFromHours(t *testing.T) {
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	hours := Hours{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "11:00"}
	reserved := []Reserved{{Time: "09:30", Duration: 30 * time.Minute}}

	slots, err := FromHours(day, hours, 30*time.Minute, 30*time.Minute, reserved, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, s := range slots {
		got = append(got, s.Format(ClockLayout))
	}
	want := []string{"09:00", "10:00", "10:30"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFromHours_Closed(t *testing.T) {
	slots, err := FromHours(time.Now(), Hours{IsClosed: true}, time.Hour, time.Hour, nil, time.Time{})
	if err != nil || slots != nil {
		t.Fatalf("closed day should have no slots, got %v %v", slots, err)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]string{
		"09:30":    "09:30",
		"14:05:00": "14:05",
		"3:04 PM":  "15:04",
		"9:00 am":  "09:00",
		"12:00 AM": "00:00",
	}
	for in, want := range cases {
		c, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
		if c.String() != want {
			t.Errorf("ParseClock(%q) = %s, want %s", in, c, want)
		}
	}
	if _, err := ParseClock("25:00"); !errors.Is(err, ErrInvalidClock) {
		t.Fatalf("expected ErrInvalidClock, got %v", err)
	}
}

func TestLabel(t *testing.T) {
	if got := Label("15:30"); got != "3:30 PM" {
		t.Fatalf("expected 3:30 PM, got %s", got)
	}
	if got := Label("09:05"); got != "9:05 AM" {
		t.Fatalf("expected 9:05 AM, got %s", got)
	}
	if got := Label("soon"); got != "soon" {
		t.Fatalf("expected passthrough, got %s", got)
	}
}
