package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/services/notification-service/internal/storage"
)

type fakeStore struct {
	list       []storage.Notification
	unreadOnly bool
	limit      int
	marked     []string
	allMarked  bool
}

func (f *fakeStore) List(_ context.Context, _ string, unreadOnly bool, limit int) ([]storage.Notification, error) {
	f.unreadOnly, f.limit = unreadOnly, limit
	return f.list, nil
}

func (f *fakeStore) CountUnread(_ context.Context, _ string) (int, error) {
	n := 0
	for _, x := range f.list {
		if !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkRead(_ context.Context, _ string, id string) error {
	if id == "missing" {
		return storage.ErrNotFound
	}
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeStore) MarkAllRead(_ context.Context, _ string) (int64, error) {
	f.allMarked = true
	return 4, nil
}

func newHandler(store *fakeStore) *NotificationHandler {
	return NewNotificationHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func withUser(r *http.Request) *http.Request {
	r.Header.Set(httpx.UserIDHeader, "u1")
	return r
}

func TestListRequiresUser(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandler(&fakeStore{}).List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestListUnread(t *testing.T) {
	store := &fakeStore{list: []storage.Notification{
		{ID: "n1", Title: "Booking received", Type: "booking", CreatedAt: time.Now()},
	}}
	rr := httptest.NewRecorder()
	newHandler(store).List(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?unread=true", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !store.unreadOnly || store.limit != 50 {
		t.Fatalf("unexpected query: unread=%v limit=%d", store.unreadOnly, store.limit)
	}
	var body struct {
		Notifications []notificationResponse `json:"notifications"`
		UnreadCount   int                    `json:"unread_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Notifications) != 1 || body.Notifications[0].ID != "n1" || body.UnreadCount != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMarkRead(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(store)

	rr := httptest.NewRecorder()
	h.MarkRead(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read", strings.NewReader(`{"id":"n1"}`))))
	if rr.Code != http.StatusOK || len(store.marked) != 1 || store.marked[0] != "n1" {
		t.Fatalf("unexpected result: %d %v", rr.Code, store.marked)
	}

	rr = httptest.NewRecorder()
	h.MarkRead(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read", strings.NewReader(`{"id":"missing"}`))))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.MarkRead(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read", nil)))
	if rr.Code != http.StatusOK || !store.allMarked {
		t.Fatalf("empty body should mark all read: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.MarkRead(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read", strings.NewReader(`nope`))))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
