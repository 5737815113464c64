package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Business struct {
	ID            string
	OwnerID       string
	IndustryID    string
	IndustryName  string
	IndustrySlug  string
	Name          string
	Slug          string
	Description   string
	Address       string
	City          string
	State         string
	PostalCode    string
	Country       string
	Phone         string
	Email         string
	Website       string
	LogoURL       string
	CoverImageURL string
	PriceLevel    int
	IsActive      bool
	IsVerified    bool
	Rating        decimal.Decimal
	ReviewCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BusinessPatch holds the fields of a partial update. Nil fields are kept.
type BusinessPatch struct {
	Name          *string
	Description   *string
	IndustryID    *string
	Address       *string
	City          *string
	State         *string
	PostalCode    *string
	Country       *string
	Phone         *string
	Email         *string
	Website       *string
	LogoURL       *string
	CoverImageURL *string
	PriceLevel    *int
}

type Industry struct {
	ID          string
	Name        string
	Slug        string
	Description string
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	Description     string
	Price           decimal.Decimal
	DurationMinutes int
	IsActive        bool
	CreatedAt       time.Time
}

type Hours struct {
	DayOfWeek int
	OpenTime  string
	CloseTime string
	IsClosed  bool
}

type Review struct {
	ID            string
	BusinessID    string
	UserID        string
	ReservationID string
	Rating        int
	Comment       string
	IsPublished   bool
	CreatedAt     time.Time
}

type SearchFilter struct {
	Industry string
	Location string
	Search   string
	Limit    int
	Offset   int
}
