// Package metrics keeps the daily reservation counters current from booking
// events.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/kafkax"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	BumpDailyMetric(ctx context.Context, businessID, day string, m storage.DailyMetric) error
}

type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

type reservationEvent struct {
	ReservationID string `json:"reservation_id"`
	BusinessID    string `json:"business_id"`
	Date          string `json:"date"`
	To            string `json:"to"`
}

// Delta maps a booking event to the counters it moves. ok is false for
// events that do not count, and for malformed ones.
func Delta(eventType string, payload []byte) (businessID, day string, m storage.DailyMetric, ok bool) {
	var evt reservationEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return "", "", storage.DailyMetric{}, false
	}
	evt.BusinessID = strings.TrimSpace(evt.BusinessID)
	if evt.BusinessID == "" {
		return "", "", storage.DailyMetric{}, false
	}
	if _, err := time.Parse("2006-01-02", evt.Date); err != nil {
		return "", "", storage.DailyMetric{}, false
	}

	switch eventType {
	case outbox.ReservationCreated:
		m.Booked = 1
	case outbox.ReservationStatusChanged:
		switch status.Reservation(evt.To) {
		case status.Cancelled:
			m.Cancelled = 1
		case status.Confirmed:
			m.Confirmed = 1
		default:
			return "", "", storage.DailyMetric{}, false
		}
	default:
		return "", "", storage.DailyMetric{}, false
	}
	return evt.BusinessID, evt.Date, m, true
}

// Handle is the kafkax handler for both reservation topics. The consumer's
// inbox makes each event count once.
func (r *Recorder) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	businessID, day, m, ok := Delta(meta.EventType, msg.Value)
	if !ok {
		r.logger.Debug("booking event skipped", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	if err := r.store.BumpDailyMetric(ctx, businessID, day, m); err != nil {
		r.logger.Error("failed to update daily metrics", "err", err, "event_id", meta.EventID)
		return err
	}
	r.logger.Info("booking metric recorded", "business_id", businessID, "day", day, "event_type", meta.EventType)
	return nil
}
