package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/booking-service/internal/availability"
	"github.com/bookly-app/bookly/services/booking-service/internal/model"
	"github.com/bookly-app/bookly/services/booking-service/internal/reference"
	"github.com/bookly-app/bookly/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

const (
	FallbackHours = "hours"
	FallbackNone  = "none"
)

// Store is the persistence the booking handlers run on. Methods taking a
// pgx.Tx run inside the caller's transaction.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InTx(ctx context.Context, fn func(pgx.Tx) error) error

	ListOpenSlots(ctx context.Context, businessID, date string) ([]model.Slot, error)
	CountSlots(ctx context.Context, businessID, date string) (int, error)
	HoursFor(ctx context.Context, businessID string, dayOfWeek int) (availability.Hours, bool, error)
	ReservedTimes(ctx context.Context, businessID, date string) ([]availability.Reserved, error)
	ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error)

	GetService(ctx context.Context, tx pgx.Tx, businessID, serviceID string) (model.Service, error)
	ClaimSlot(ctx context.Context, tx pgx.Tx, slotID, businessID, date, clock string) error
	ReleaseSlot(ctx context.Context, tx pgx.Tx, slotID string) error
	Create(ctx context.Context, tx pgx.Tx, res *model.Reservation, next func() string) error

	Get(ctx context.Context, id string) (model.Reservation, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Reservation, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to status.Reservation) (time.Time, error)

	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key, requestHash string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, userID, key, reservationID string, statusCode int, response []byte) error
}

// EventWriter appends outbox events in the caller's transaction.
type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

var (
	_ Store       = (*storage.ReservationRepository)(nil)
	_ EventWriter = (*outbox.Repository)(nil)
)

type Config struct {
	// Fallback selects what the availability reader does when the slots
	// table has no rows for the date.
	Fallback        string
	SlotStep        time.Duration
	DefaultDuration time.Duration
	// Location is the zone business hours are kept in. Slots earlier than
	// the current wall time there are not offered.
	Location *time.Location
}

type BookingHandler struct {
	repo       Store
	outboxRepo EventWriter
	logger     *slog.Logger
	refs       *reference.Generator
	cfg        Config
	now        func() time.Time
}

func NewBookingHandler(repo Store, outboxRepo EventWriter, logger *slog.Logger, refs *reference.Generator, cfg Config) *BookingHandler {
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackHours
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = cfg.SlotStep
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if refs == nil {
		refs = reference.NewGenerator()
	}
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
		refs:       refs,
		cfg:        cfg,
		now:        time.Now,
	}
}

type reservationResponse struct {
	ID               string `json:"id"`
	BookingReference string `json:"booking_reference"`
	Status           string `json:"status"`
	StatusColor      string `json:"status_color"`
	TotalAmount      string `json:"total_amount"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	TimeLabel        string `json:"time_label"`
	ServiceID        string `json:"service_id"`
	ServiceName      string `json:"service_name,omitempty"`
	BusinessID       string `json:"business_id"`
	BusinessName     string `json:"business_name,omitempty"`
	SlotID           string `json:"slot_id,omitempty"`
	Notes            string `json:"notes,omitempty"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func toResponse(res model.Reservation) reservationResponse {
	out := reservationResponse{
		ID:               res.ID,
		BookingReference: res.BookingReference,
		Status:           string(res.Status),
		StatusColor:      string(res.Status.Color()),
		TotalAmount:      money.Format(res.TotalAmount),
		Date:             res.Date,
		Time:             res.Time,
		TimeLabel:        availability.Label(res.Time),
		ServiceID:        res.ServiceID,
		ServiceName:      res.ServiceName,
		BusinessID:       res.BusinessID,
		BusinessName:     res.BusinessName,
		SlotID:           res.SlotID,
		Notes:            res.Notes,
		CreatedAt:        res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if res.CancelledAt != nil {
		out.CancelledAt = res.CancelledAt.UTC().Format(time.RFC3339)
	}
	return out
}
