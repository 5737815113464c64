package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/bookly-app/bookly/libs/auth"
	"github.com/bookly-app/bookly/libs/httpx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-User", r.Header.Get(httpx.UserIDHeader))
		w.Header().Set("X-Seen-Email", r.Header.Get(httpx.UserEmailHeader))
		w.WriteHeader(http.StatusOK)
	})
}

func TestIsPublic(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/auth/signin", true},
		{http.MethodGet, "/auth/session", true},
		{http.MethodGet, "/api/v1/availability", true},
		{http.MethodGet, "/api/v1/businesses/acme-cuts", true},
		{http.MethodPost, "/api/v1/businesses", false},
		{http.MethodGet, "/api/v1/industries", true},
		{http.MethodGet, "/api/v1/services", true},
		{http.MethodPut, "/api/v1/services/42", false},
		{http.MethodPost, "/api/v1/billing/webhooks/stripe", true},
		{http.MethodPost, "/api/v1/payments/intent", false},
		{http.MethodGet, "/api/v1/reservations/mine", false},
		{http.MethodGet, "/api/v1/dashboard/overview", false},
		{http.MethodGet, "/api/v1/notifications", false},
		{http.MethodGet, "/api/v1/businessesx", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, nil)
		if got := isPublic(r); got != tc.want {
			t.Errorf("%s %s: expected %v, got %v", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestWithIdentityInjectsFromCookie(t *testing.T) {
	sessions := auth.Sessions{Secret: "test-secret"}
	token, _, err := sessions.Issue("user-1", "ada@example.com", "sess-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	h := withIdentity(sessions, echoIdentity())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/mine", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	req.Header.Set(httpx.UserIDHeader, "spoofed")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got := rw.Header().Get("X-Seen-User"); got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
	if got := rw.Header().Get("X-Seen-Email"); got != "ada@example.com" {
		t.Fatalf("expected email, got %q", got)
	}
}

func TestWithIdentityBearer(t *testing.T) {
	sessions := auth.Sessions{Secret: "test-secret"}
	token, _, err := sessions.Issue("user-2", "", "sess-2")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	h := withIdentity(sessions, echoIdentity())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK || rw.Header().Get("X-Seen-User") != "user-2" {
		t.Fatalf("expected user-2 with 200, got %d %q", rw.Code, rw.Header().Get("X-Seen-User"))
	}
}

func TestWithIdentityRejectsProtected(t *testing.T) {
	sessions := auth.Sessions{Secret: "test-secret"}
	h := withIdentity(sessions, echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/overview", nil)
	req.Header.Set(httpx.UserIDHeader, "spoofed")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}

	other := auth.Sessions{Secret: "other-secret"}
	token, _, _ := other.Issue("user-1", "", "sess-1")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/overview", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign token, got %d", rw.Code)
	}
}

func TestWithIdentityRejectsExpired(t *testing.T) {
	issued := auth.Sessions{Secret: "test-secret", TTL: time.Minute, Now: func() time.Time { return time.Now().Add(-time.Hour) }}
	token, _, err := issued.Issue("user-1", "", "sess-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	h := withIdentity(auth.Sessions{Secret: "test-secret"}, echoIdentity())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestWithIdentityPublicStripsSpoofedHeaders(t *testing.T) {
	h := withIdentity(auth.Sessions{Secret: "test-secret"}, echoIdentity())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?business_id=b1", nil)
	req.Header.Set(httpx.UserIDHeader, "spoofed")
	req.Header.Set(httpx.UserEmailHeader, "spoofed@example.com")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if rw.Header().Get("X-Seen-User") != "" || rw.Header().Get("X-Seen-Email") != "" {
		t.Fatalf("spoofed identity reached upstream")
	}
}

func TestRegisterRoutesProxies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		w.Header().Set("X-Seen-User", r.Header.Get(httpx.UserIDHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	sessions := auth.Sessions{Secret: "test-secret"}
	mux := http.NewServeMux()
	if err := registerRoutes(mux, upstreams{
		Auth:         upstream.URL,
		Business:     upstream.URL,
		Booking:      upstream.URL,
		Billing:      upstream.URL,
		Dashboard:    upstream.URL,
		Notification: upstream.URL,
	}, sessions, testLogger()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	gw := httptest.NewServer(mux)
	defer gw.Close()

	resp, err := http.Get(gw.URL + "/api/v1/industries")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Upstream-Path") != "/api/v1/industries" {
		t.Fatalf("unexpected proxy result %d %q", resp.StatusCode, resp.Header.Get("X-Upstream-Path"))
	}

	token, _, _ := sessions.Issue("user-9", "", "sess-9")
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, gw.URL+"/api/v1/dashboard/calendar", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Seen-User") != "user-9" {
		t.Fatalf("expected injected user, got %q", resp.Header.Get("X-Seen-User"))
	}

	resp, err = http.Get(gw.URL + "/api/v1/notifications")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUpstreamDownAnswers502(t *testing.T) {
	proxy, err := newProxy("http://127.0.0.1:1", http.DefaultTransport, testLogger())
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	rw := httptest.NewRecorder()
	proxy.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/industries", nil))
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
}

func TestStrictLimitOnSignin(t *testing.T) {
	general := httpx.NewRateLimiter(100, time.Minute)
	strict := httpx.NewRateLimiter(2, time.Minute)
	h := withRateLimits(general, strict, httpx.ClientIP, testLogger(), true)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}
	for i := 0; i < 2; i++ {
		if code := do("/auth/signin"); code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, code)
		}
	}
	if code := do("/auth/signin"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := do("/api/v1/industries"); code != http.StatusOK {
		t.Fatalf("expected other routes unaffected, got %d", code)
	}
}

func TestStrictLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	trusted, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	general := httpx.NewRateLimiter(100, time.Minute)
	strict := httpx.NewRateLimiter(2, time.Minute)
	h := withRateLimits(general, strict, trusted.ClientIP, testLogger(), true)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	passed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if rw.Code == http.StatusOK {
			passed++
		}
	}
	if passed != 2 {
		t.Fatalf("expected 2 of 20 to pass, got %d", passed)
	}

	// Behind a trusted proxy each forwarded client gets its own bucket.
	for _, client := range []string{"203.0.113.50", "203.0.113.51"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = "10.0.0.2:5000"
		req.Header.Set("X-Forwarded-For", client)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if rw.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", client, rw.Code)
		}
	}
}
