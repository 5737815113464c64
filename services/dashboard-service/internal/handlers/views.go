package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/money"
	"github.com/bookly-app/bookly/libs/pagination"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/reporting"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/storage"
)

// Reservations lists the business's reservations, optionally filtered by
// ?status=.
func (h *DashboardHandler) Reservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, _, err := status.ParseReservation(q.Get("status"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid status")
		return
	}
	b, ok := h.business(w, r)
	if !ok {
		return
	}
	page := pagination.FromQuery(q)
	list, total, err := h.store.ListReservations(r.Context(), storage.ReservationFilter{
		BusinessID: b.ID,
		Status:     st,
		Limit:      page.Limit,
		Offset:     page.Offset(),
	})
	if err != nil {
		h.logger.Error("list reservations failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"reservations": toReservationRows(list),
		"status":       string(st),
		"pagination":   pagination.Build(page, total),
	})
}

type paymentRow struct {
	ID               string `json:"id"`
	ReservationID    string `json:"reservation_id,omitempty"`
	BookingReference string `json:"booking_reference,omitempty"`
	CustomerName     string `json:"customer_name"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"payment_status"`
	StatusLabel      string `json:"status_label"`
	StatusColor      string `json:"status_color"`
	Method           string `json:"payment_method,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// Payments lists payments in the ?period= window with summary cards computed
// over every matching row.
func (h *DashboardHandler) Payments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, _, err := status.ParsePayment(q.Get("status"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid status")
		return
	}
	b, ok := h.business(w, r)
	if !ok {
		return
	}
	page := pagination.FromQuery(q)
	period := strings.ToLower(strings.TrimSpace(q.Get("period")))
	filter := storage.PaymentFilter{
		BusinessID: b.ID,
		Status:     st,
		Since:      reporting.PeriodStart(period, h.now()),
		Limit:      page.Limit,
		Offset:     page.Offset(),
	}

	ctx := r.Context()
	list, total, err := h.store.ListPayments(ctx, filter)
	if err != nil {
		h.logger.Error("list payments failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list payments")
		return
	}
	totals, err := h.store.PaymentTotals(ctx, filter)
	if err != nil {
		h.logger.Error("payment totals failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to summarize payments")
		return
	}
	cards := reporting.Cards(totals)

	rows := make([]paymentRow, 0, len(list))
	for _, p := range list {
		badge := p.Status.Badge()
		rows = append(rows, paymentRow{
			ID:               p.ID,
			ReservationID:    p.ReservationID,
			BookingReference: p.Reference,
			CustomerName:     p.CustomerName,
			Amount:           money.Format(p.Amount),
			Currency:         p.Currency,
			Status:           badge.Value,
			StatusLabel:      badge.Label,
			StatusColor:      string(badge.Color),
			Method:           p.Method,
			CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"payments": rows,
		"summary": map[string]string{
			"total_revenue":   money.Format(cards.TotalRevenue),
			"pending_amount":  money.Format(cards.PendingAmount),
			"refunded_amount": money.Format(cards.RefundedAmount),
		},
		"status":     string(st),
		"period":     period,
		"pagination": pagination.Build(page, total),
	})
}

type bucketRow struct {
	Rating  int `json:"rating"`
	Count   int `json:"count"`
	Percent int `json:"percent"`
}

// Reviews lists published reviews, optionally filtered by ?rating=, with
// the distribution over every review of the business.
func (h *DashboardHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	b, ok := h.business(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page := pagination.FromQuery(q)
	raw := strings.TrimSpace(q.Get("rating"))
	rating, ok := reporting.ParseRating(raw)
	if !ok && raw != "" && !strings.EqualFold(raw, "all") {
		httpx.WriteError(w, http.StatusBadRequest, "invalid rating")
		return
	}

	ctx := r.Context()
	list, total, err := h.store.ListReviews(ctx, storage.ReviewFilter{
		BusinessID: b.ID,
		Rating:     rating,
		Limit:      page.Limit,
		Offset:     page.Offset(),
	})
	if err != nil {
		h.logger.Error("list reviews failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	counts, err := h.store.RatingCounts(ctx, b.ID)
	if err != nil {
		h.logger.Error("rating counts failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to summarize reviews")
		return
	}
	dist := reporting.Distribution(counts)
	buckets := make([]bucketRow, 0, len(dist))
	for _, d := range dist {
		buckets = append(buckets, bucketRow{Rating: d.Rating, Count: d.Count, Percent: d.Percent})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"reviews":        toReviewRows(list),
		"distribution":   buckets,
		"average_rating": b.Rating.StringFixed(2),
		"review_count":   b.ReviewCount,
		"rating":         rating,
		"pagination":     pagination.Build(page, total),
	})
}

type cellRow struct {
	Date         string           `json:"date"`
	Day          int              `json:"day"`
	InMonth      bool             `json:"in_month"`
	IsToday      bool             `json:"is_today"`
	Reservations []reservationRow `json:"reservations"`
}

// Calendar renders the month containing ?date= (default today) as a
// 42-cell grid.
func (h *DashboardHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	month := today
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := time.ParseInLocation(reporting.DateLayout, raw, h.location)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		month = d
	}
	b, ok := h.business(w, r)
	if !ok {
		return
	}

	cells := reporting.Grid(month, today)
	list, err := h.store.ReservationsBetween(r.Context(), b.ID, cells[0].Date, cells[len(cells)-1].Date)
	if err != nil {
		h.logger.Error("calendar reservations failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}
	byDate := map[string][]reservationRow{}
	for _, res := range list {
		byDate[res.Date] = append(byDate[res.Date], toReservationRow(res))
	}

	out := make([]cellRow, 0, len(cells))
	for _, c := range cells {
		events := byDate[c.Date]
		if !c.InMonth || events == nil {
			events = []reservationRow{}
		}
		out = append(out, cellRow{Date: c.Date, Day: c.Day, InMonth: c.InMonth, IsToday: c.IsToday, Reservations: events})
	}
	todayEvents := byDate[today.Format(reporting.DateLayout)]
	if todayEvents == nil {
		todayEvents = []reservationRow{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"month":      reporting.MonthStart(month).Format(reporting.DateLayout),
		"month_name": reporting.MonthName(month),
		"prev_month": reporting.PrevMonth(month),
		"next_month": reporting.NextMonth(month),
		"cells":      out,
		"today":      todayEvents,
	})
}

// Overview is the dashboard home: headline counts, today's schedule and the
// latest reviews.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	b, ok := h.business(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	todayKey := h.today().Format(reporting.DateLayout)

	count, err := h.store.CountReservations(ctx, b.ID)
	if err != nil {
		h.logger.Error("count reservations failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load overview")
		return
	}
	today, err := h.store.ReservationsBetween(ctx, b.ID, todayKey, todayKey)
	if err != nil {
		h.logger.Error("today reservations failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load overview")
		return
	}
	reviews, _, err := h.store.ListReviews(ctx, storage.ReviewFilter{BusinessID: b.ID, Limit: 3})
	if err != nil {
		h.logger.Error("recent reviews failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load overview")
		return
	}
	totals, err := h.store.PaymentTotals(ctx, storage.PaymentFilter{BusinessID: b.ID, Status: status.PaymentSucceeded})
	if err != nil {
		h.logger.Error("revenue failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load overview")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"business_id":        b.ID,
		"business_name":      b.Name,
		"total_reservations": count,
		"today_reservations": toReservationRows(today),
		"recent_reviews":     toReviewRows(reviews),
		"total_revenue":      money.Format(reporting.Cards(totals).TotalRevenue),
		"average_rating":     b.Rating.StringFixed(2),
		"review_count":       b.ReviewCount,
	})
}

const (
	defaultMetricDays = 30
	maxMetricDays     = 365
)

// Metrics returns the daily counters for the last ?days= days.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	days := defaultMetricDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMetricDays {
			httpx.WriteError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	b, ok := h.business(w, r)
	if !ok {
		return
	}
	since := h.today().AddDate(0, 0, -(days - 1))
	list, err := h.store.DailyMetrics(r.Context(), b.ID, since)
	if err != nil {
		h.logger.Error("daily metrics failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	type metricRow struct {
		Day       string `json:"day"`
		Booked    int    `json:"booked"`
		Cancelled int    `json:"cancelled"`
		Confirmed int    `json:"confirmed"`
	}
	rows := make([]metricRow, 0, len(list))
	var booked, cancelled, confirmed int
	for _, m := range list {
		rows = append(rows, metricRow{Day: m.Day, Booked: m.Booked, Cancelled: m.Cancelled, Confirmed: m.Confirmed})
		booked += m.Booked
		cancelled += m.Cancelled
		confirmed += m.Confirmed
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"days":    days,
		"since":   since.Format(reporting.DateLayout),
		"metrics": rows,
		"totals": map[string]int{
			"booked":    booked,
			"cancelled": cancelled,
			"confirmed": confirmed,
		},
	})
}
