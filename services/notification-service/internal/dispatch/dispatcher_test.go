package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bookly-app/bookly/libs/kafkax"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type fakeStore struct {
	rows     []storage.Notification
	contacts map[string]storage.Contact
	err      error
}

func (f *fakeStore) InsertAll(_ context.Context, list []storage.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, list...)
	return nil
}

func (f *fakeStore) ContactFor(_ context.Context, userID string) (storage.Contact, error) {
	c, ok := f.contacts[userID]
	if !ok {
		return storage.Contact{}, storage.ErrNotFound
	}
	return c, nil
}

type sentEmail struct{ to, subject string }

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(to, subject, _ string) error {
	f.sent = append(f.sent, sentEmail{to, subject})
	return f.err
}

type fakeSMS struct{ to []string }

func (f *fakeSMS) Send(_ context.Context, to, _ string) error {
	f.to = append(f.to, to)
	return nil
}

func (f *fakeSMS) ProviderID() string { return "fake" }

func message(eventType, payload string) kafka.Message {
	return kafka.Message{
		Topic: eventType,
		Value: []byte(payload),
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte("evt-1")},
			{Key: kafkax.HeaderEventType, Value: []byte(eventType)},
		},
	}
}

func newDispatcher(store *fakeStore, mail *fakeEmail, text *fakeSMS) *Dispatcher {
	return New(store, mail, text, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleReservationCreated(t *testing.T) {
	store := &fakeStore{}
	mail := &fakeEmail{}
	d := newDispatcher(store, mail, &fakeSMS{})
	err := d.Handle(context.Background(), message(outbox.ReservationCreated,
		`{"reservation_id":"r1","booking_reference":"BK-100000","user_id":"u1","owner_id":"o1","customer_email":"c@example.com","date":"2024-06-01","time":"10:00"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.rows) != 2 || store.rows[0].UserID != "u1" || store.rows[1].UserID != "o1" {
		t.Fatalf("unexpected rows: %+v", store.rows)
	}
	if len(mail.sent) != 1 || mail.sent[0].to != "c@example.com" {
		t.Fatalf("unexpected emails: %+v", mail.sent)
	}
}

func TestHandleResolvesRecipientAndPhone(t *testing.T) {
	store := &fakeStore{contacts: map[string]storage.Contact{"u1": {Email: "u1@example.com", Phone: "+15550100"}}}
	mail := &fakeEmail{}
	text := &fakeSMS{}
	d := newDispatcher(store, mail, text)
	err := d.Handle(context.Background(), message(outbox.ReminderDue,
		`{"reservation_id":"r1","user_id":"u1","date":"2024-06-01","time":"10:00"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].to != "u1@example.com" {
		t.Fatalf("unexpected emails: %+v", mail.sent)
	}
	if len(text.to) != 1 || text.to[0] != "+15550100" {
		t.Fatalf("unexpected sms: %+v", text.to)
	}
}

func TestHandleAccountEmailWritesNoRow(t *testing.T) {
	store := &fakeStore{}
	mail := &fakeEmail{}
	d := newDispatcher(store, mail, &fakeSMS{})
	if err := d.Handle(context.Background(), message(outbox.PasswordResetRequested, `{"user_id":"u1","email":"a@example.com","link":"x"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.rows) != 0 || len(mail.sent) != 1 {
		t.Fatalf("expected email only, got rows=%d emails=%d", len(store.rows), len(mail.sent))
	}
}

func TestHandleErrors(t *testing.T) {
	store := &fakeStore{}
	mail := &fakeEmail{err: errors.New("smtp down")}
	d := newDispatcher(store, mail, &fakeSMS{})

	if err := d.Handle(context.Background(), message(outbox.ReservationCreated, `{`)); err != nil {
		t.Fatalf("malformed payloads are dropped, got %v", err)
	}
	if err := d.Handle(context.Background(), message(outbox.ReservationCreated, `{"user_id":"u1","customer_email":"c@example.com"}`)); err != nil {
		t.Fatalf("email failures must not retry the event, got %v", err)
	}

	store.err = errors.New("db down")
	if err := d.Handle(context.Background(), message(outbox.ReservationCreated, `{"user_id":"u1"}`)); err == nil {
		t.Fatalf("expected store error to be returned")
	}
}
