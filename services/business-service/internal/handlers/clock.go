package handlers

import (
	"strconv"
	"strings"
	"time"
)

func parseClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse("15:04", raw)
	if err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", raw)
}

func hoursKey(i int, field string) string {
	return "hours[" + strconv.Itoa(i) + "]." + field
}
