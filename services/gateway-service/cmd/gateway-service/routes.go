package main

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/bookly-app/bookly/libs/auth"
	"github.com/bookly-app/bookly/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type upstreams struct {
	Auth         string
	Business     string
	Booking      string
	Billing      string
	Dashboard    string
	Notification string
}

// publicReads are readable without a session.
var publicReads = []string{
	"/api/v1/availability",
	"/api/v1/businesses",
	"/api/v1/industries",
	"/api/v1/services",
	"/api/v1/business-hours",
	"/api/v1/reviews",
}

// publicWrites authenticate by signature or are gated by the upstream.
var publicWrites = []string{
	"/api/v1/billing/webhooks/stripe",
	"/api/v1/billing/webhooks/local",
}

func registerRoutes(mux *http.ServeMux, up upstreams, sessions auth.Sessions, logger *slog.Logger) error {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	routes := []struct {
		upstream string
		prefixes []string
	}{
		{up.Auth, []string{"/auth"}},
		{up.Business, []string{"/api/v1/businesses", "/api/v1/industries", "/api/v1/services", "/api/v1/business-hours", "/api/v1/reviews"}},
		{up.Booking, []string{"/api/v1/availability", "/api/v1/reservations"}},
		{up.Billing, []string{"/api/v1/payments", "/api/v1/billing"}},
		{up.Dashboard, []string{"/api/v1/dashboard"}},
		{up.Notification, []string{"/api/v1/notifications"}},
	}
	for _, rt := range routes {
		proxy, err := newProxy(rt.upstream, transport, logger)
		if err != nil {
			return err
		}
		h := withIdentity(sessions, proxy)
		for _, prefix := range rt.prefixes {
			registerProxy(mux, prefix, h)
		}
	}
	return nil
}

func newProxy(raw string, transport http.RoundTripper, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream error", "err", err, "upstream", target.Host, "path", r.URL.Path)
		httpx.WriteError(w, http.StatusBadGateway, "upstream unavailable")
	}
	return proxy, nil
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

// withIdentity replaces any client supplied identity headers with the ones
// carried by a verified session. Requests without a valid session are
// rejected unless the route is public.
func withIdentity(sessions auth.Sessions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.UserIDHeader)
		r.Header.Del(httpx.UserEmailHeader)

		claims, err := sessions.FromRequest(r)
		if err != nil || claims.Sub == "" {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		r.Header.Set(httpx.UserIDHeader, claims.Sub)
		if claims.Email != "" {
			r.Header.Set(httpx.UserEmailHeader, claims.Email)
		}
		next.ServeHTTP(w, r)
	})
}

func isPublic(r *http.Request) bool {
	path := r.URL.Path
	if hasPathPrefix(path, "/auth") {
		return true
	}
	for _, p := range publicWrites {
		if path == p {
			return true
		}
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	for _, p := range publicReads {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
