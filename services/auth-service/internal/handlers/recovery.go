package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/auth-service/internal/audit"
	"github.com/bookly-app/bookly/services/auth-service/internal/codes"
	"github.com/bookly-app/bookly/services/auth-service/internal/redirect"
	"github.com/bookly-app/bookly/services/auth-service/internal/sessions"
	"github.com/bookly-app/bookly/services/auth-service/internal/storage"
	"github.com/bookly-app/bookly/services/auth-service/internal/tokens"
	"github.com/jackc/pgx/v5"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// ResetPassword starts the recovery flow for an email address.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	email := storage.NormalizeEmail(r.PostFormValue("email"))
	callbackURL := redirect.SafeCallback(r.PostFormValue("callbackUrl"), defaultResetTarget)
	if email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.links.SeeOther(w, r, forgotPasswordPage, "error", codes.EmailNotFound)
			return
		}
		h.logger.Error("reset lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}

	err = h.pool.InTx(ctx, func(tx pgx.Tx) error {
		raw, err := h.tokens.Issue(ctx, tx, user.ID, tokens.Recovery, h.cfg.ResetTokenTTL)
		if err != nil {
			return err
		}
		return h.insertEvent(ctx, tx, user.ID, outbox.PasswordResetRequested, map[string]any{
			"user_id":    user.ID,
			"email":      user.Email,
			"link":       h.link(verifyRoute, "type", string(tokens.Recovery), "token", raw, "next", callbackURL),
			"expires_at": h.now().Add(h.cfg.ResetTokenTTL).UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		h.logger.Error("reset token failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}
	h.links.SeeOther(w, r, resetConfirmPage, "email", user.Email)
}

// Verify handles the links sent by email.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("token"))
	kind := tokens.Purpose(q.Get("type"))
	if kind == "" {
		kind = tokens.EmailVerification
	}
	if raw == "" {
		h.links.SeeOther(w, r, signInPage, "error", codes.MissingToken)
		return
	}

	switch kind {
	case tokens.EmailVerification:
		ctx := r.Context()
		var userID string
		err := h.pool.InTx(ctx, func(tx pgx.Tx) error {
			var err error
			userID, err = h.tokens.Consume(ctx, tx, raw, tokens.EmailVerification)
			if err != nil {
				return err
			}
			if err := h.users.MarkEmailVerified(ctx, tx, userID); err != nil {
				return err
			}
			return h.audit.RecordTx(ctx, tx, h.outbox, audit.EmailVerified, userID, map[string]any{})
		})
		if err != nil {
			if !errors.Is(err, tokens.ErrInvalid) {
				h.logger.Error("email verification failed", "err", err)
			}
			h.links.SeeOther(w, r, signInPage, "error", codes.VerificationError)
			return
		}
		h.links.SeeOther(w, r, signInPage, "success", codes.EmailVerified)
	case tokens.Recovery:
		h.links.SeeOther(w, r, resetPasswordPage, "token", raw)
	default:
		h.links.SeeOther(w, r, signInPage)
	}
}

// passwordProblem returns the message for an unacceptable new password, or "".
func passwordProblem(password, confirm string) string {
	switch {
	case password == "":
		return "Password is required"
	case password != confirm:
		return "Passwords do not match"
	case len(password) < minPasswordLength:
		return "Password must be at least 8 characters"
	}
	return ""
}

// UpdatePassword sets a new password either through a recovery token or for
// the signed-in user.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	password := r.PostFormValue("password")
	if msg := passwordProblem(password, r.PostFormValue("confirmPassword")); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	raw := formValue(r, "token")
	callbackURL := redirect.SafeCallback(r.PostFormValue("callbackUrl"), defaultSignInTarget)

	ctx := r.Context()
	var userID string
	if raw == "" {
		claims, err := h.cookies.FromRequest(r)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s, err := h.sessions.Get(ctx, claims.SessionID)
		if err != nil || !s.Active(h.now()) {
			if err != nil && !errors.Is(err, sessions.ErrNotFound) {
				h.logger.Error("session lookup failed", "err", err)
				httpx.WriteError(w, http.StatusInternalServerError, unexpectedErrorMessage)
				return
			}
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID = s.UserID
	}

	hash, err := hashPassword(password)
	if err != nil {
		h.logger.Error("password hash failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}

	err = h.pool.InTx(ctx, func(tx pgx.Tx) error {
		if raw != "" {
			var err error
			userID, err = h.tokens.Consume(ctx, tx, raw, tokens.Recovery)
			if err != nil {
				return err
			}
			if _, err := h.sessions.RevokeAllForUser(ctx, tx, userID); err != nil {
				return err
			}
		}
		if err := h.users.SetPassword(ctx, tx, userID, hash); err != nil {
			return err
		}
		return h.audit.RecordTx(ctx, tx, h.outbox, audit.PasswordReset, userID, map[string]any{"via_token": raw != ""})
	})
	switch {
	case errors.Is(err, tokens.ErrInvalid):
		h.links.SeeOther(w, r, resetPasswordPage, "error", codes.TokenInvalid)
		return
	case err != nil:
		h.logger.Error("password update failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, unexpectedErrorMessage)
		return
	}

	if raw != "" {
		h.cookies.ClearCookie(w)
		h.links.SeeOther(w, r, signInPage, "success", codes.PasswordReset)
		return
	}
	h.links.SeeOther(w, r, callbackURL)
}
