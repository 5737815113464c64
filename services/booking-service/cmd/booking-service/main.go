package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/config"
	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/grpcx"
	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/kafkax"
	otelx "github.com/bookly-app/bookly/libs/otel"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/runtime"
	"github.com/bookly-app/bookly/services/booking-service/internal/handlers"
	"github.com/bookly-app/bookly/services/booking-service/internal/reference"
	"github.com/bookly-app/bookly/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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
	repo := storage.NewReservationRepository(pool)
	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// Shares the scheduler's zone so both agree on which slots are past.
	tz := config.String("BOOKING_TIMEZONE", config.String("SCHEDULER_TIMEZONE", "UTC"))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Error("invalid booking timezone, using UTC", "err", err, "timezone", tz)
		loc = time.UTC
	}

	bookingHandler := handlers.NewBookingHandler(repo, outboxRepo, logger, reference.NewGenerator(), handlers.Config{
		Fallback:        strings.ToLower(config.String("AVAILABILITY_FALLBACK", handlers.FallbackHours)),
		SlotStep:        config.Duration("AVAILABILITY_SLOT_STEP", 30*time.Minute),
		DefaultDuration: config.Duration("AVAILABILITY_DEFAULT_DURATION", 30*time.Minute),
		Location:        loc,
	})

	if topic := config.String("KAFKA_PAYMENT_TOPIC", outbox.PaymentSucceeded); strings.TrimSpace(topic) != "" && brokers != "" {
		paymentConsumer := kafkax.NewConsumer(logger, outbox.NewInbox(pool, "booking-service"), kafkax.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   topic,
		}, bookingHandler.ConfirmFromPayment)
		go paymentConsumer.Run(ctx)
	}

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if addr := config.String("BUSINESS_GRPC_ADDR", ""); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			logger.Error("business grpc dial failed", "err", err)
		} else {
			defer conn.Close()
			checks = append(checks, runtime.ReadyCheck{Name: "business", Check: grpcx.HealthReadyCheck(conn, "business-service")})
		}
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/availability", bookingHandler.Availability)
	mux.HandleFunc("/api/v1/reservations", bookingHandler.Create)
	mux.HandleFunc("/api/v1/reservations/mine", bookingHandler.Mine)
	mux.HandleFunc("/api/v1/reservations/status", bookingHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/reservations/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/reservations/{id}", bookingHandler.Get)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
