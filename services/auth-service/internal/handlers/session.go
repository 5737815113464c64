package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/services/auth-service/internal/codes"
	"github.com/bookly-app/bookly/services/auth-service/internal/sessions"
)

type sessionResponse struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	IsBusinessOwner bool   `json:"is_business_owner"`
}

// Session describes the signed-in user behind the cookie.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, err := h.cookies.FromRequest(r)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx := r.Context()
	s, err := h.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.logger.Error("session lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if !s.Active(h.now()) || s.UserID != claims.Sub {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.users.Profile(ctx, claims.Sub)
	if err != nil {
		h.logger.Error("profile lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		UserID:          claims.Sub,
		Email:           claims.Email,
		FullName:        profile.FullName,
		IsBusinessOwner: profile.IsBusinessOwner,
	})
}

type messageResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Messages serves the code tables, or a single lookup with ?error= or
// ?success=.
func (h *AuthHandler) Messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if code := q.Get("error"); code != "" {
		httpx.WriteJSON(w, http.StatusOK, messageResponse{Code: code, Message: codes.ErrorMessage(code)})
		return
	}
	if code := q.Get("success"); code != "" {
		httpx.WriteJSON(w, http.StatusOK, messageResponse{Code: code, Message: codes.SuccessMessage(code)})
		return
	}
	errs, successes := codes.Tables()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"errors":    errs,
		"successes": successes,
	})
}

// Audit lists recent audit rows for operators holding the admin key.
func (h *AuthHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil || h.cfg.AdminKey == "" {
		httpx.WriteError(w, http.StatusNotFound, "audit not available")
		return
	}
	reqKey := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(reqKey), []byte(h.cfg.AdminKey)) != 1 {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	events, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, events)
}
