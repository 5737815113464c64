package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/auth-service/internal/audit"
	"github.com/bookly-app/bookly/services/auth-service/internal/codes"
	"github.com/bookly-app/bookly/services/auth-service/internal/oauth"
	"github.com/bookly-app/bookly/services/auth-service/internal/redirect"
	"github.com/bookly-app/bookly/services/auth-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	stateCookieName = "bookly_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

type oauthState struct {
	Provider    string
	State       string
	CallbackURL string
}

func (s oauthState) encode() string {
	return s.Provider + "|" + s.State + "|" + url.QueryEscape(s.CallbackURL)
}

func decodeState(raw string) (oauthState, bool) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return oauthState{}, false
	}
	cb, err := url.QueryUnescape(parts[2])
	if err != nil {
		return oauthState{}, false
	}
	return oauthState{Provider: parts[0], State: parts[1], CallbackURL: cb}, true
}

// ProviderSignIn redirects to the provider consent page.
func (h *AuthHandler) ProviderSignIn(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	callbackURL := redirect.SafeCallback(r.URL.Query().Get("callbackUrl"), defaultSignInTarget)

	p, err := h.providers.Get(name)
	switch {
	case errors.Is(err, oauth.ErrUnknownProvider):
		h.fail(w, r, signInPage, codes.InvalidProvider, callbackURL)
		return
	case err != nil:
		h.logger.Warn("oauth provider unavailable", "provider", name, "err", err)
		h.fail(w, r, signInPage, codes.OAuthError, callbackURL)
		return
	}

	st := oauthState{Provider: p.Name, State: uuid.NewString(), CallbackURL: callbackURL}
	cookie := &http.Cookie{
		Name:     stateCookieName,
		Value:    st.encode(),
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if p.FormPost {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, p.AuthCodeURL(st.State), http.StatusSeeOther)
}

func (h *AuthHandler) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.SecureCookie,
	})
}

// Callback completes the provider flow. Apple posts the form; the others
// redirect with a query.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.FormValue("code"))
	if code == "" {
		h.links.SeeOther(w, r, "/")
		return
	}

	var st oauthState
	ok := false
	if c, err := r.Cookie(stateCookieName); err == nil {
		st, ok = decodeState(c.Value)
	}
	h.clearState(w)
	got := r.FormValue("state")
	if !ok || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(st.State)) != 1 {
		h.links.SeeOther(w, r, signInPage, "error", codes.OAuthError)
		return
	}
	next := redirect.SafeCallback(r.FormValue("next"), redirect.SafeCallback(st.CallbackURL, defaultSignInTarget))

	p, err := h.providers.Get(st.Provider)
	if err != nil {
		h.fail(w, r, signInPage, codes.OAuthError, next)
		return
	}
	ctx := r.Context()
	acct, err := h.providers.Exchange(ctx, p, code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", "provider", p.Name, "err", err)
		h.fail(w, r, signInPage, codes.OAuthError, next)
		return
	}

	var token string
	var expires time.Time
	err = h.pool.InTx(ctx, func(tx pgx.Tx) error {
		user, created, err := h.users.FindOrCreateByIdentity(ctx, tx, storage.Identity{
			Provider: acct.Provider,
			Subject:  acct.Subject,
			Email:    acct.Email,
			Name:     acct.Name,
		})
		if err != nil {
			return err
		}
		if created {
			if err := h.insertEvent(ctx, tx, user.ID, outbox.UserCreated, map[string]any{
				"user_id":   user.ID,
				"email":     user.Email,
				"full_name": acct.Name,
				"provider":  acct.Provider,
			}); err != nil {
				return err
			}
		}
		token, expires, err = h.openSession(ctx, tx, r, user, acct.Provider)
		if err != nil {
			return err
		}
		return h.audit.RecordTx(ctx, tx, h.outbox, audit.OAuthSignIn, user.ID, map[string]any{
			"provider": acct.Provider,
			"created":  created,
		})
	})
	if err != nil {
		h.logger.Error("oauth signin failed", "provider", p.Name, "err", err)
		h.fail(w, r, signInPage, codes.OAuthError, next)
		return
	}
	h.cookies.SetCookie(w, token, expires)
	h.links.SeeOther(w, r, next)
}
