package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/auth"
	"github.com/bookly-app/bookly/libs/config"
	"github.com/bookly-app/bookly/libs/grpcx"
	"github.com/bookly-app/bookly/libs/httpx"
	otelx "github.com/bookly-app/bookly/libs/otel"
	"github.com/bookly-app/bookly/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// strictPaths get the sign-in rate limit on top of the general one.
var strictPaths = []string{"/auth/signin", "/auth/signup"}

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	sessionSecret, err := config.RequiredString("SESSION_SECRET")
	if err != nil {
		panic(err)
	}
	sessions := auth.Sessions{Secret: sessionSecret}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	authLimitPerMinute := config.Int("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	trusted, err := httpx.ParseTrustedProxies(httpx.SplitList(config.String("TRUSTED_PROXIES", "")))
	if err != nil {
		panic(err)
	}

	var checks []runtime.ReadyCheck
	var general, strict httpx.Limiter
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		prefix := config.String("RATE_LIMIT_PREFIX", "rl")
		general = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, prefix)
		strict = httpx.NewRedisRateLimiter(rdb, authLimitPerMinute, time.Minute, prefix+":auth")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "auth_per_minute", authLimitPerMinute, "redis_addr", addr)
	} else {
		general = httpx.NewRateLimiter(limitPerMinute, time.Minute)
		strict = httpx.NewRateLimiter(authLimitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute, "auth_per_minute", authLimitPerMinute)
	}

	if addr := config.String("BUSINESS_GRPC_ADDR", ""); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			logger.Error("business grpc dial failed", "err", err)
		} else {
			defer func() { _ = conn.Close() }()
			checks = append(checks, runtime.ReadyCheck{Name: "business", Check: grpcx.HealthReadyCheck(conn, "business-service")})
		}
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	if err := registerRoutes(mux, upstreams{
		Auth:         config.String("AUTH_URL", "http://auth-service:8081"),
		Business:     config.String("BUSINESS_URL", "http://business-service:8082"),
		Booking:      config.String("BOOKING_URL", "http://booking-service:8083"),
		Billing:      config.String("BILLING_URL", "http://billing-service:8084"),
		Dashboard:    config.String("DASHBOARD_URL", "http://dashboard-service:8086"),
		Notification: config.String("NOTIFICATION_URL", "http://notification-service:8085"),
	}, sessions, logger); err != nil {
		panic(err)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicyFromLists(
			config.String("CORS_ALLOWED_ORIGINS", ""),
			config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			config.Bool("CORS_ALLOW_CREDENTIALS", true),
			config.Duration("CORS_MAX_AGE", 10*time.Minute),
		)),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(func(r *http.Request, v any) {
			logger.Error("panic recovered", "path", r.URL.Path, "panic", v)
		}),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		withRateLimits(general, strict, trusted.ClientIP, logger, failOpen),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// withRateLimits applies the general per-client limit and, on sign-in and
// sign-up, the stricter one. clientIP decides which address a request counts
// against.
func withRateLimits(general, strict httpx.Limiter, clientIP httpx.KeyFunc, logger *slog.Logger, failOpen bool) httpx.Middleware {
	generalMW := httpx.WithRateLimit(general, clientIP, logger, failOpen)
	strictMW := httpx.WithRateLimit(strict, httpx.PathKey(clientIP, strictPaths...), logger, failOpen)
	return func(next http.Handler) http.Handler {
		return generalMW(strictMW(next))
	}
}
