package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Identity headers set by the gateway after it verifies the session.
const (
	UserIDHeader    = "X-User-Id"
	UserEmailHeader = "X-User-Email"
)

var ErrEmptyBody = errors.New("empty request body")

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}

// DecodeJSON decodes a single JSON object from the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	return nil
}

// UserID returns the caller identity injected by the gateway.
func UserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// RequireUser writes 401 and returns false when no identity is present.
func RequireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := UserID(r)
	if id == "" {
		WriteError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return id, true
}
