package status

import "strings"

type Reservation string

const (
	Pending   Reservation = "pending"
	Confirmed Reservation = "confirmed"
	Completed Reservation = "completed"
	Cancelled Reservation = "cancelled"
	NoShow    Reservation = "no-show"
)

var ReservationStatuses = []Reservation{Pending, Confirmed, Completed, Cancelled, NoShow}

var reservationTransitions = transitions[Reservation]{
	Pending:   set(Confirmed, Cancelled),
	Confirmed: set(Completed, Cancelled, NoShow),
}

func (s Reservation) Valid() bool {
	for _, v := range ReservationStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal states accept no further transition.
func (s Reservation) Terminal() bool {
	return s == Completed || s == Cancelled || s == NoShow
}

// Active reservations hold their time slot.
func (s Reservation) Active() bool {
	return s != Cancelled
}

func (s Reservation) Color() Color {
	switch s {
	case Confirmed:
		return Green
	case Pending:
		return Yellow
	case Cancelled:
		return Red
	case Completed:
		return Blue
	default:
		return Gray
	}
}

func (s Reservation) Label() string {
	switch s {
	case NoShow:
		return "No-show"
	case "":
		return "Unknown"
	default:
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	}
}

func (s Reservation) Badge() Badge {
	return Badge{Value: string(s), Label: s.Label(), Color: s.Color()}
}

// ParseReservation validates a filter value. It returns ok=false with no
// error for "all" or an empty value.
func ParseReservation(raw string) (s Reservation, ok bool, err error) {
	if isAll(raw) {
		return "", false, nil
	}
	s = Reservation(strings.TrimSpace(strings.ToLower(raw)))
	if !s.Valid() {
		return "", false, ErrUnknownStatus
	}
	return s, true, nil
}

// CanTransition reports whether a reservation may move from one status to
// another. Writing the current status again is allowed.
func CanTransition(from, to Reservation) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return reservationTransitions.allowed(from, to)
}

func CheckTransition(from, to Reservation) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
