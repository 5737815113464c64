package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bookly-app/bookly/libs/kafkax"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

func TestDelta(t *testing.T) {
	cases := []struct {
		name    string
		typ     string
		payload string
		ok      bool
		want    storage.DailyMetric
	}{
		{"created", outbox.ReservationCreated, `{"business_id":"b1","date":"2024-06-01"}`, true, storage.DailyMetric{Booked: 1}},
		{"cancelled", outbox.ReservationStatusChanged, `{"business_id":"b1","date":"2024-06-01","to":"cancelled"}`, true, storage.DailyMetric{Cancelled: 1}},
		{"confirmed", outbox.ReservationStatusChanged, `{"business_id":"b1","date":"2024-06-01","to":"confirmed"}`, true, storage.DailyMetric{Confirmed: 1}},
		{"completed is not counted", outbox.ReservationStatusChanged, `{"business_id":"b1","date":"2024-06-01","to":"completed"}`, false, storage.DailyMetric{}},
		{"missing business", outbox.ReservationCreated, `{"date":"2024-06-01"}`, false, storage.DailyMetric{}},
		{"bad date", outbox.ReservationCreated, `{"business_id":"b1","date":"June 1"}`, false, storage.DailyMetric{}},
		{"bad json", outbox.ReservationCreated, `{`, false, storage.DailyMetric{}},
		{"other topic", outbox.PaymentSucceeded, `{"business_id":"b1","date":"2024-06-01"}`, false, storage.DailyMetric{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			biz, day, m, ok := Delta(tc.typ, []byte(tc.payload))
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			if biz != "b1" || day != "2024-06-01" || m != tc.want {
				t.Fatalf("unexpected delta: %s %s %+v", biz, day, m)
			}
		})
	}
}

type fakeStore struct {
	calls []storage.DailyMetric
	err   error
}

func (f *fakeStore) BumpDailyMetric(_ context.Context, _, _ string, m storage.DailyMetric) error {
	f.calls = append(f.calls, m)
	return f.err
}

func TestHandle(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	msg := kafka.Message{
		Topic: outbox.ReservationCreated,
		Value: []byte(`{"business_id":"b1","date":"2024-06-01"}`),
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte("e1")},
			{Key: kafkax.HeaderEventType, Value: []byte(outbox.ReservationCreated)},
		},
	}
	if err := rec.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.calls) != 1 || store.calls[0].Booked != 1 {
		t.Fatalf("unexpected calls: %+v", store.calls)
	}

	msg.Value = []byte(`not json`)
	if err := rec.Handle(context.Background(), msg); err != nil {
		t.Fatalf("malformed events must be dropped, got %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("malformed event reached the store")
	}

	store.err = errors.New("db down")
	msg.Value = []byte(`{"business_id":"b1","date":"2024-06-01"}`)
	if err := rec.Handle(context.Background(), msg); err == nil {
		t.Fatalf("expected store error to be returned for retry")
	}
}
