package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/auth"
	"github.com/bookly-app/bookly/libs/config"
	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/kafkax"
	otelx "github.com/bookly-app/bookly/libs/otel"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/runtime"
	"github.com/bookly-app/bookly/services/auth-service/internal/audit"
	"github.com/bookly-app/bookly/services/auth-service/internal/handlers"
	"github.com/bookly-app/bookly/services/auth-service/internal/oauth"
	"github.com/bookly-app/bookly/services/auth-service/internal/sessions"
	"github.com/bookly-app/bookly/services/auth-service/internal/storage"
	"github.com/bookly-app/bookly/services/auth-service/internal/tokens"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "auth-service")
	port, err := config.Port("PORT", "8081")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	secret, err := config.RequiredString("SESSION_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	baseURL := strings.TrimRight(config.String("APP_BASE_URL", ""), "/")
	providers := oauth.NewRegistry(baseURL+"/auth/callback", map[string]oauth.Credentials{
		oauth.Google: {ClientID: config.String("GOOGLE_CLIENT_ID", ""), ClientSecret: config.String("GOOGLE_CLIENT_SECRET", "")},
		oauth.GitHub: {ClientID: config.String("GITHUB_CLIENT_ID", ""), ClientSecret: config.String("GITHUB_CLIENT_SECRET", "")},
		oauth.Apple:  {ClientID: config.String("APPLE_CLIENT_ID", ""), ClientSecret: config.String("APPLE_CLIENT_SECRET", "")},
	})
	cookies := auth.Sessions{
		Secret:       secret,
		TTL:          config.Duration("SESSION_TTL", 7*24*time.Hour),
		SecureCookie: config.Bool("SESSION_COOKIE_SECURE", strings.HasPrefix(baseURL, "https://")),
	}

	authHandler := handlers.NewAuthHandler(handlers.Deps{
		Pool:      pool,
		Users:     storage.NewUserRepository(pool),
		Sessions:  sessions.NewRepository(pool),
		Tokens:    tokens.NewRepository(),
		Audit:     audit.NewRepository(pool),
		Outbox:    outboxRepo,
		Providers: providers,
	}, cookies, handlers.Config{
		BaseURL:                  baseURL,
		RequireEmailVerification: config.Bool("AUTH_REQUIRE_EMAIL_VERIFICATION", false),
		ResetTokenTTL:            config.Duration("AUTH_RESET_TOKEN_TTL", time.Hour),
		VerificationTokenTTL:     config.Duration("AUTH_VERIFICATION_TOKEN_TTL", 24*time.Hour),
		AdminKey:                 config.String("AUTH_ADMIN_KEY", ""),
	}, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/auth/signin", httpx.Methods{http.MethodPost: authHandler.SignIn})
	mux.Handle("/auth/signup", httpx.Methods{http.MethodPost: authHandler.SignUp})
	mux.Handle("/auth/signout", httpx.Methods{http.MethodPost: authHandler.SignOut})
	mux.Handle("/auth/reset-password", httpx.Methods{http.MethodPost: authHandler.ResetPassword})
	mux.Handle("/auth/update-password", httpx.Methods{http.MethodPost: authHandler.UpdatePassword})
	mux.Handle("/auth/verify", httpx.Methods{http.MethodGet: authHandler.Verify})
	mux.Handle("/auth/signin/{provider}", httpx.Methods{http.MethodGet: authHandler.ProviderSignIn})
	mux.Handle("/auth/callback", httpx.Methods{
		http.MethodGet:  authHandler.Callback,
		http.MethodPost: authHandler.Callback,
	})
	mux.Handle("/auth/session", httpx.Methods{http.MethodGet: authHandler.Session})
	mux.Handle("/auth/messages", httpx.Methods{http.MethodGet: authHandler.Messages})
	mux.Handle("/auth/audit", httpx.Methods{http.MethodGet: authHandler.Audit})
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(64<<10),
	)
	handler = otelhttp.NewHandler(handler, "auth")
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
