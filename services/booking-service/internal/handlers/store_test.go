package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/booking-service/internal/availability"
	"github.com/bookly-app/bookly/services/booking-service/internal/model"
	"github.com/bookly-app/bookly/services/booking-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// fakeTx stands in for a transaction and its savepoints. Methods it does not
// override panic through the nil embedded Tx.
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (tx *fakeTx) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }
func (tx *fakeTx) Commit(context.Context) error          { tx.committed = true; return nil }
func (tx *fakeTx) Rollback(context.Context) error        { return nil }

type fakeStore struct {
	service    model.Service
	serviceErr error
	claimErr   error
	createErr  error

	slots    []model.Slot
	slotsErr error
	hours    *availability.Hours

	reservations map[string]model.Reservation
	idempotency  map[string]storage.IdempotencyRecord
	released     []string
	created      int
	txs          []*fakeTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		service: model.Service{
			ID: "svc-1", BusinessID: "biz-1", Name: "Haircut", IsActive: true, Price: decimal.RequireFromString("45"),
			OwnerID: "owner-1", BusinessName: "Sharp Cuts",
		},
		reservations: map[string]model.Reservation{},
		idempotency:  map[string]storage.IdempotencyRecord{},
	}
}

func (s *fakeStore) Begin(context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *fakeStore) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, _ := s.Begin(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *fakeStore) ListOpenSlots(context.Context, string, string) ([]model.Slot, error) {
	return s.slots, s.slotsErr
}

func (s *fakeStore) CountSlots(context.Context, string, string) (int, error) {
	return len(s.slots), nil
}

func (s *fakeStore) HoursFor(_ context.Context, _ string, dayOfWeek int) (availability.Hours, bool, error) {
	if s.hours == nil {
		return availability.Hours{}, false, nil
	}
	h := *s.hours
	h.DayOfWeek = dayOfWeek
	return h, true, nil
}

func (s *fakeStore) ReservedTimes(context.Context, string, string) ([]availability.Reserved, error) {
	return nil, nil
}

func (s *fakeStore) ServiceDuration(context.Context, string, string) (int, error) {
	return s.service.DurationMinutes, nil
}

func (s *fakeStore) GetService(_ context.Context, _ pgx.Tx, businessID, serviceID string) (model.Service, error) {
	if s.serviceErr != nil {
		return model.Service{}, s.serviceErr
	}
	if businessID != s.service.BusinessID || serviceID != s.service.ID {
		return model.Service{}, storage.ErrNotFound
	}
	return s.service, nil
}

func (s *fakeStore) ClaimSlot(context.Context, pgx.Tx, string, string, string, string) error {
	return s.claimErr
}

func (s *fakeStore) ReleaseSlot(_ context.Context, _ pgx.Tx, slotID string) error {
	if slotID != "" {
		s.released = append(s.released, slotID)
	}
	return nil
}

func (s *fakeStore) Create(_ context.Context, _ pgx.Tx, res *model.Reservation, next func() string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created++
	res.ID = fmt.Sprintf("res-%d", s.created)
	res.BookingReference = next()
	res.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res.UpdatedAt = res.CreatedAt
	s.reservations[res.ID] = *res
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (model.Reservation, error) {
	res, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, storage.ErrNotFound
	}
	return res, nil
}

func (s *fakeStore) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (model.Reservation, error) {
	return s.Get(ctx, id)
}

func (s *fakeStore) ListByUser(_ context.Context, userID string, _ int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range s.reservations {
		if res.UserID == userID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, _ pgx.Tx, id string, from, to status.Reservation) (time.Time, error) {
	if err := status.CheckTransition(from, to); err != nil {
		return time.Time{}, err
	}
	res := s.reservations[id]
	if res.Status != from {
		return time.Time{}, storage.ErrInvalidTransition
	}
	res.Status = to
	s.reservations[id] = res
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), nil
}

func (s *fakeStore) LockIdempotencyKey(_ context.Context, _ pgx.Tx, userID, key, requestHash string) (storage.IdempotencyRecord, bool, error) {
	id := userID + "|" + key
	if rec, ok := s.idempotency[id]; ok {
		return rec, rec.StatusCode > 0, nil
	}
	rec := storage.IdempotencyRecord{UserID: userID, IdempotencyKey: key, RequestHash: requestHash}
	s.idempotency[id] = rec
	return rec, false, nil
}

func (s *fakeStore) FinalizeIdempotency(_ context.Context, _ pgx.Tx, userID, key, reservationID string, statusCode int, response []byte) error {
	id := userID + "|" + key
	rec := s.idempotency[id]
	rec.ReservationID = reservationID
	rec.StatusCode = statusCode
	rec.ResponsePayload = response
	s.idempotency[id] = rec
	return nil
}

type fakeEvents struct {
	events []outbox.Event
}

func (f *fakeEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}
