package model

import (
	"time"

	"github.com/bookly-app/bookly/libs/status"
	"github.com/shopspring/decimal"
)

type Reservation struct {
	ID               string
	BusinessID       string
	ServiceID        string
	UserID           string
	SlotID           string
	BookingReference string
	Date             string
	Time             string
	Status           status.Reservation
	TotalAmount      decimal.Decimal
	Notes            string
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Filled by joined reads.
	ServiceName  string
	BusinessName string
	OwnerID      string
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
	IsActive        bool
	OwnerID         string
	BusinessName    string
}

type Slot struct {
	ID                  string
	BusinessID          string
	ServiceID           string
	Date                string
	Time                string
	IsBooked            bool
	AvailableStaffCount int
}
