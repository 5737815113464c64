package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bookly-app/bookly/libs/config"
	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/kafkax"
	otelx "github.com/bookly-app/bookly/libs/otel"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/runtime"
	"github.com/bookly-app/bookly/services/billing-service/internal/handlers"
	"github.com/bookly-app/bookly/services/billing-service/internal/payments"
	"github.com/bookly-app/bookly/services/billing-service/internal/processor"
	"github.com/bookly-app/bookly/services/billing-service/internal/reconcile"
	"github.com/bookly-app/bookly/services/billing-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "billing-service")
	port, err := config.Port("PORT", "8084")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	proc := processor.New(config.String("STRIPE_SECRET_KEY", ""))
	logger.Info("payment processor selected", "processor", proc.Name())

	h := handlers.New(repo, outboxRepo, proc, logger, handlers.Config{
		Currency:                      config.String("PAYMENTS_CURRENCY", "usd"),
		StripeWebhookSecret:           config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookToleranceSeconds: config.Int("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300),
		LocalWebhookEnabled:           config.Bool("BILLING_LOCAL_WEBHOOK_ENABLED", proc.Name() == "local"),
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/api/v1/payments", httpx.Methods{http.MethodGet: h.List})
	mux.Handle("/api/v1/payments/intent", httpx.Methods{http.MethodPost: h.CreateIntent})
	mux.Handle("/api/v1/payments/refund", httpx.Methods{http.MethodPost: h.Refund})
	mux.Handle("/api/v1/billing/webhooks/stripe", httpx.Methods{http.MethodPost: h.StripeWebhook})
	mux.Handle("/api/v1/billing/webhooks/local", httpx.Methods{http.MethodPost: h.LocalWebhook})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, "billing")
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

	// Self-heal payments whose webhooks never arrived.
	if config.Bool("BILLING_STRIPE_RECONCILE_ENABLED", false) {
		interval := config.Duration("BILLING_STRIPE_RECONCILE_INTERVAL", 5*time.Minute)
		rec := reconcile.NewStripeReconciler(pool, repo, payments.New(repo, outboxRepo), proc, logger, reconcile.StripeReconcilerConfig{
			Interval:        interval,
			BatchSize:       config.Int("BILLING_STRIPE_RECONCILE_BATCH_SIZE", 50),
			MinAge:          config.Duration("BILLING_RECONCILE_MIN_AGE", 15*time.Minute),
			AdvisoryLockKey: int64(config.Int("BILLING_STRIPE_RECONCILE_LOCK_KEY", 4242001)),
		})
		go rec.Run(ctx, interval)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
