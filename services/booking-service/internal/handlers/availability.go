package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/services/booking-service/internal/availability"
)

type slotItem struct {
	ID                  string `json:"id,omitempty"`
	Date                string `json:"date"`
	Time                string `json:"time"`
	Label               string `json:"label"`
	ServiceID           string `json:"service_id,omitempty"`
	AvailableStaffCount int    `json:"available_staff_count"`
}

// Availability lists the open slots of a business on a date. Read failures
// are logged and answered with an empty list.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if businessID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "business_id required")
		return
	}
	day, err := availability.ParseDate(dateStr)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid date")
		return
	}

	items, err := h.openSlots(r.Context(), businessID, serviceID, day)
	if err != nil {
		h.logger.Error("availability read failed", "err", err, "business_id", businessID, "date", dateStr)
		items = nil
	}
	if items == nil {
		items = []slotItem{}
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) openSlots(ctx context.Context, businessID, serviceID string, day time.Time) ([]slotItem, error) {
	date := day.Format(availability.DateLayout)
	slots, err := h.repo.ListOpenSlots(ctx, businessID, date)
	if err != nil {
		return nil, err
	}
	if len(slots) > 0 || h.cfg.Fallback != FallbackHours {
		items := make([]slotItem, 0, len(slots))
		for _, s := range slots {
			items = append(items, slotItem{
				ID:                  s.ID,
				Date:                s.Date,
				Time:                s.Time,
				Label:               availability.Label(s.Time),
				ServiceID:           s.ServiceID,
				AvailableStaffCount: s.AvailableStaffCount,
			})
		}
		return items, nil
	}

	// A fully booked day still has rows; only a day without any rows falls
	// back to the weekly hours.
	total, err := h.repo.CountSlots(ctx, businessID, date)
	if err != nil || total > 0 {
		return nil, err
	}
	return h.slotsFromHours(ctx, businessID, serviceID, day)
}

func (h *BookingHandler) slotsFromHours(ctx context.Context, businessID, serviceID string, day time.Time) ([]slotItem, error) {
	hours, ok, err := h.repo.HoursFor(ctx, businessID, int(day.Weekday()))
	if err != nil || !ok {
		return nil, err
	}
	duration := h.cfg.DefaultDuration
	if serviceID != "" {
		mins, err := h.repo.ServiceDuration(ctx, businessID, serviceID)
		if err != nil {
			return nil, err
		}
		if mins > 0 {
			duration = time.Duration(mins) * time.Minute
		}
	}
	date := day.Format(availability.DateLayout)
	reserved, err := h.repo.ReservedTimes(ctx, businessID, date)
	if err != nil {
		return nil, err
	}

	starts, err := availability.FromHours(day, hours, duration, h.cfg.SlotStep, reserved, h.wallClockNow())
	if err != nil {
		return nil, err
	}
	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{
			Date:                date,
			Time:                s.Format(availability.ClockLayout),
			Label:               s.Format(availability.LabelLayout),
			ServiceID:           serviceID,
			AvailableStaffCount: 1,
		})
	}
	return items, nil
}

// wallClockNow expresses the current wall time of the configured location in
// UTC so it compares with dates parsed without a zone.
func (h *BookingHandler) wallClockNow() time.Time {
	n := h.now().In(h.cfg.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), n.Second(), 0, time.UTC)
}
