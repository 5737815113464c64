package auth

import (
	"net/http"
	"strings"
	"time"
)

const SessionCookieName = "bookly_session"

// Sessions issues and verifies session tokens and their cookies.
type Sessions struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
	Now          func() time.Time
}

func (s Sessions) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Sessions) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s Sessions) Issue(userID, email, sessionID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl())
	token, err := SignHS256(Claims{
		Sub:       userID,
		Email:     email,
		SessionID: sessionID,
		Iat:       now.Unix(),
		Exp:       exp.Unix(),
	}, s.Secret)
	return token, exp, err
}

func (s Sessions) Verify(token string) (*Claims, error) {
	return ParseAndVerifyHS256(token, s.Secret, s.now())
}

// FromRequest verifies the session carried by the cookie or, failing that,
// an Authorization bearer token.
func (s Sessions) FromRequest(r *http.Request) (*Claims, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return s.Verify(token)
}

func (s Sessions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
