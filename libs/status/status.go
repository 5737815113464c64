// Package status defines the reservation and payment state machines and
// the badge colors the dashboard renders for each state.
package status

import (
	"errors"
	"strings"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Color string

const (
	Green  Color = "green"
	Yellow Color = "yellow"
	Red    Color = "red"
	Blue   Color = "blue"
	Gray   Color = "gray"
)

// Badge is the display form of a status.
type Badge struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color Color  `json:"color"`
}

// isAll reports whether a filter value means "no filter".
func isAll(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "" || s == "all"
}

type transitions[S ~string] map[S]map[S]struct{}

func (t transitions[S]) allowed(from, to S) bool {
	if from == to {
		return true
	}
	next, ok := t[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func set[S ~string](values ...S) map[S]struct{} {
	m := make(map[S]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}
