package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/services/notification-service/internal/storage"
)

const listLimit = 50

type Store interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]storage.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type NotificationHandler struct {
	store  Store
	logger *slog.Logger
}

func NewNotificationHandler(store Store, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{store: store, logger: logger}
}

type notificationResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Type          string `json:"type"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	IsRead        bool   `json:"is_read"`
	CreatedAt     string `json:"created_at"`
}

// List returns the caller's latest notifications. ?unread=true keeps only
// unread ones.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	unread := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("unread")), "true")
	ctx := r.Context()
	list, err := h.store.List(ctx, userID, unread, listLimit)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	count, err := h.store.CountUnread(ctx, userID)
	if err != nil {
		h.logger.Error("count unread failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, notificationResponse{
			ID:            n.ID,
			Title:         n.Title,
			Message:       n.Message,
			Type:          n.Type,
			ReferenceType: n.ReferenceType,
			ReferenceID:   n.ReferenceID,
			IsRead:        n.IsRead,
			CreatedAt:     n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": out,
		"unread_count":  count,
	})
}

type readRequest struct {
	ID string `json:"id"`
}

// MarkRead marks {id} read, or every notification when id is empty.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var req readRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	ctx := r.Context()
	if id := strings.TrimSpace(req.ID); id != "" {
		if err := h.store.MarkRead(ctx, userID, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "notification not found")
				return
			}
			h.logger.Error("mark read failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "failed to update notification")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"updated": 1})
		return
	}
	n, err := h.store.MarkAllRead(ctx, userID)
	if err != nil {
		h.logger.Error("mark all read failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"updated": n})
}
