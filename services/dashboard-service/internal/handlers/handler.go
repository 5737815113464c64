package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/storage"
	"github.com/shopspring/decimal"
)

// Store is the read side the dashboard needs. *storage.Repository
// implements it.
type Store interface {
	BusinessForOwner(ctx context.Context, ownerID string) (storage.Business, error)
	ListReservations(ctx context.Context, f storage.ReservationFilter) ([]storage.Reservation, int, error)
	ReservationsBetween(ctx context.Context, businessID, from, to string) ([]storage.Reservation, error)
	CountReservations(ctx context.Context, businessID string) (int, error)
	ListPayments(ctx context.Context, f storage.PaymentFilter) ([]storage.Payment, int, error)
	PaymentTotals(ctx context.Context, f storage.PaymentFilter) (map[status.Payment]decimal.Decimal, error)
	ListReviews(ctx context.Context, f storage.ReviewFilter) ([]storage.Review, int, error)
	RatingCounts(ctx context.Context, businessID string) (map[int]int, error)
	DailyMetrics(ctx context.Context, businessID string, since time.Time) ([]storage.DailyMetric, error)
}

type DashboardHandler struct {
	store    Store
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// NewDashboardHandler builds the handler. loc decides what "today" is; nil
// means UTC.
func NewDashboardHandler(store Store, logger *slog.Logger, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{store: store, logger: logger, location: loc, now: time.Now}
}

func (h *DashboardHandler) today() time.Time {
	return h.now().In(h.location)
}

// business resolves the caller's business and writes the error response
// when it cannot.
func (h *DashboardHandler) business(w http.ResponseWriter, r *http.Request) (storage.Business, bool) {
	ownerID, ok := httpx.RequireUser(w, r)
	if !ok {
		return storage.Business{}, false
	}
	b, err := h.store.BusinessForOwner(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "business not found")
			return storage.Business{}, false
		}
		h.logger.Error("load business failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load business")
		return storage.Business{}, false
	}
	return b, true
}

type reservationRow struct {
	ID               string `json:"id"`
	BookingReference string `json:"booking_reference"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Status           string `json:"status"`
	StatusLabel      string `json:"status_label"`
	StatusColor      string `json:"status_color"`
	TotalAmount      string `json:"total_amount"`
	ServiceName      string `json:"service_name"`
	CustomerName     string `json:"customer_name"`
	Notes            string `json:"notes,omitempty"`
}

func toReservationRow(res storage.Reservation) reservationRow {
	badge := res.Status.Badge()
	return reservationRow{
		ID:               res.ID,
		BookingReference: res.Reference,
		Date:             res.Date,
		Time:             res.Time,
		Status:           badge.Value,
		StatusLabel:      badge.Label,
		StatusColor:      string(badge.Color),
		TotalAmount:      money.Format(res.TotalAmount),
		ServiceName:      res.ServiceName,
		CustomerName:     res.CustomerName,
		Notes:            res.Notes,
	}
}

func toReservationRows(list []storage.Reservation) []reservationRow {
	out := make([]reservationRow, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationRow(res))
	}
	return out
}

type reviewRow struct {
	ID           string `json:"id"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	CustomerName string `json:"customer_name"`
	CreatedAt    string `json:"created_at"`
}

func toReviewRows(list []storage.Review) []reviewRow {
	out := make([]reviewRow, 0, len(list))
	for _, rv := range list {
		out = append(out, reviewRow{
			ID:           rv.ID,
			Rating:       rv.Rating,
			Comment:      rv.Comment,
			CustomerName: rv.CustomerName,
			CreatedAt:    rv.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
