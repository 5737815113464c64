package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/booking-service/internal/availability"
	"github.com/bookly-app/bookly/services/booking-service/internal/model"
	"github.com/bookly-app/bookly/services/booking-service/internal/reference"
	"github.com/bookly-app/bookly/services/booking-service/internal/storage"
)

var bookingRefPattern = regexp.MustCompile(`^BK-\d{6}$`)

const createBody = `{"business_id":"biz-1","service_id":"svc-1","date":"2026-03-04","time":"10:00","slot_id":"slot-1"}`

func newStoreHandler(store *fakeStore, events *fakeEvents, cfg Config) *BookingHandler {
	return NewBookingHandler(store, events, slog.New(slog.NewTextHandler(io.Discard, nil)), reference.NewSeeded(7), cfg)
}

func createRequest(body, idempotencyKey string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req.Header.Set(httpx.UserIDHeader, "user-1")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return req
}

func TestCreateReservation(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{}
	h := newStoreHandler(store, events, Config{})

	rec := httptest.NewRecorder()
	h.Create(rec, createRequest(createBody, ""))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var out reservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TotalAmount != "45.00" {
		t.Fatalf("total must be the service price, got %s", out.TotalAmount)
	}
	if !bookingRefPattern.MatchString(out.BookingReference) {
		t.Fatalf("unexpected booking reference %q", out.BookingReference)
	}
	if out.Status != string(status.Pending) || out.ServiceName != "Haircut" || out.SlotID != "slot-1" {
		t.Fatalf("unexpected response %+v", out)
	}
	if len(store.txs) != 1 || !store.txs[0].committed {
		t.Fatalf("expected one committed transaction")
	}
	if len(events.events) != 1 || events.events[0].EventType != outbox.ReservationCreated {
		t.Fatalf("expected a reservation created event, got %+v", events.events)
	}
}

func TestCreateReservationStorageErrors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*fakeStore)
		want  int
	}{
		{"slot taken", func(s *fakeStore) { s.claimErr = storage.ErrSlotTaken }, http.StatusConflict},
		{"slot missing", func(s *fakeStore) { s.claimErr = storage.ErrNotFound }, http.StatusNotFound},
		{"slot mismatch", func(s *fakeStore) { s.claimErr = storage.ErrSlotMismatch }, http.StatusBadRequest},
		{"active slot conflict", func(s *fakeStore) { s.createErr = storage.ErrConflict }, http.StatusConflict},
		{"unknown service", func(s *fakeStore) { s.serviceErr = storage.ErrNotFound }, http.StatusNotFound},
		{"inactive service", func(s *fakeStore) { s.service.IsActive = false }, http.StatusBadRequest},
		{"db failure", func(s *fakeStore) { s.createErr = errors.New("boom") }, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			tc.setup(store)
			events := &fakeEvents{}
			h := newStoreHandler(store, events, Config{})

			rec := httptest.NewRecorder()
			h.Create(rec, createRequest(createBody, ""))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
			if len(events.events) != 0 {
				t.Fatalf("no event expected on failure")
			}
			if len(store.txs) == 1 && store.txs[0].committed {
				t.Fatalf("failed booking must not commit")
			}
		})
	}
}

func TestCreateReservationIdempotentReplay(t *testing.T) {
	store := newFakeStore()
	h := newStoreHandler(store, &fakeEvents{}, Config{})

	first := httptest.NewRecorder()
	h.Create(first, createRequest(createBody, "key-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", first.Code, first.Body.String())
	}

	replay := httptest.NewRecorder()
	h.Create(replay, createRequest(createBody, "key-1"))
	if replay.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d", replay.Code)
	}
	if strings.TrimSpace(replay.Body.String()) != strings.TrimSpace(first.Body.String()) {
		t.Fatalf("replay body differs:\n%s\n%s", first.Body.String(), replay.Body.String())
	}
	if store.created != 1 {
		t.Fatalf("expected one reservation, got %d", store.created)
	}

	other := strings.Replace(createBody, `"10:00"`, `"10:30"`, 1)
	reused := httptest.NewRecorder()
	h.Create(reused, createRequest(other, "key-1"))
	if reused.Code != http.StatusConflict {
		t.Fatalf("reused key: expected 409, got %d", reused.Code)
	}
	if store.created != 1 {
		t.Fatalf("reused key must not book again")
	}
}

func TestAvailabilityReadFailureAnswersEmptyList(t *testing.T) {
	store := newFakeStore()
	store.slotsErr = errors.New("connection reset")
	h := newStoreHandler(store, &fakeEvents{}, Config{})

	rec := httptest.NewRecorder()
	h.Availability(rec, httptest.NewRequest(http.MethodGet, "/api/v1/availability?business_id=biz-1&date=2026-03-04", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected [], got %s", got)
	}
}

func TestAvailabilityFromHoursUsesConfiguredZone(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	store := newFakeStore()
	store.hours = &availability.Hours{OpenTime: "09:00", CloseTime: "12:00"}

	cases := []struct {
		loc  *time.Location
		want []string
	}{
		// 15:00 UTC is 10:00 in EST, so the 09:00 slot is already past.
		{est, []string{"10:00", "11:00"}},
		{time.UTC, nil},
	}
	for _, tc := range cases {
		h := newStoreHandler(store, &fakeEvents{}, Config{SlotStep: time.Hour, Location: tc.loc})
		h.now = func() time.Time { return time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) }

		rec := httptest.NewRecorder()
		h.Availability(rec, httptest.NewRequest(http.MethodGet, "/api/v1/availability?business_id=biz-1&date=2026-03-04", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.loc, rec.Code)
		}
		var items []slotItem
		if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
			t.Fatalf("decode: %v", err)
		}
		var got []string
		for _, it := range items {
			got = append(got, it.Time)
		}
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("%s: expected %v, got %v", tc.loc, tc.want, got)
		}
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	store := newFakeStore()
	store.reservations["res-9"] = model.Reservation{
		ID: "res-9", UserID: "user-1", OwnerID: "owner-1", SlotID: "slot-9", Status: status.Confirmed,
	}
	events := &fakeEvents{}
	h := newStoreHandler(store, events, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/cancel", strings.NewReader(`{"id":"res-9"}`))
	req.Header.Set(httpx.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if store.reservations["res-9"].Status != status.Cancelled {
		t.Fatalf("reservation not cancelled")
	}
	if len(store.released) != 1 || store.released[0] != "slot-9" {
		t.Fatalf("expected slot-9 released, got %v", store.released)
	}
	if len(events.events) != 1 || events.events[0].EventType != outbox.ReservationStatusChanged {
		t.Fatalf("expected a status changed event, got %+v", events.events)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reservations/cancel", strings.NewReader(`{"id":"res-9"}`))
	req.Header.Set(httpx.UserIDHeader, "someone-else")
	rec = httptest.NewRecorder()
	h.Cancel(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", rec.Code)
	}
}
