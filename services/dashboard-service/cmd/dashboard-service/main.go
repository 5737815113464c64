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
	"github.com/bookly-app/bookly/services/dashboard-service/internal/handlers"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/metrics"
	"github.com/bookly-app/bookly/services/dashboard-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "dashboard-service")
	port, err := config.Port("PORT", "8086")
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

	loc, err := time.LoadLocation(config.String("DASHBOARD_TIMEZONE", "UTC"))
	if err != nil {
		logger.Warn("invalid DASHBOARD_TIMEZONE, using UTC", "err", err)
		loc = time.UTC
	}

	repo := storage.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		recorder := metrics.NewRecorder(repo, logger)
		inbox := outbox.NewInbox(pool, "dashboard-service")
		for _, topic := range []string{outbox.ReservationCreated, outbox.ReservationStatusChanged} {
			c := kafkax.NewConsumer(logger, inbox, kafkax.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", "dashboard-service"),
				Topic:   topic,
			}, recorder.Handle)
			go c.Run(ctx)
		}
	}

	h := handlers.NewDashboardHandler(repo, logger, loc)
	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/api/v1/dashboard/reservations", httpx.Methods{http.MethodGet: h.Reservations})
	mux.Handle("/api/v1/dashboard/payments", httpx.Methods{http.MethodGet: h.Payments})
	mux.Handle("/api/v1/dashboard/reviews", httpx.Methods{http.MethodGet: h.Reviews})
	mux.Handle("/api/v1/dashboard/calendar", httpx.Methods{http.MethodGet: h.Calendar})
	mux.Handle("/api/v1/dashboard/overview", httpx.Methods{http.MethodGet: h.Overview})
	mux.Handle("/api/v1/dashboard/metrics", httpx.Methods{http.MethodGet: h.Metrics})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithTimeout(15*time.Second),
	)
	handler = otelhttp.NewHandler(handler, "dashboard")
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
