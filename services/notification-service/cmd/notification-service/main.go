package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/config"
	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/kafkax"
	otelx "github.com/bookly-app/bookly/libs/otel"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/runtime"
	"github.com/bookly-app/bookly/services/notification-service/internal/dispatch"
	"github.com/bookly-app/bookly/services/notification-service/internal/email"
	"github.com/bookly-app/bookly/services/notification-service/internal/handlers"
	"github.com/bookly-app/bookly/services/notification-service/internal/sms"
	"github.com/bookly-app/bookly/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// topics are the events that produce notifications.
var topics = []string{
	outbox.ReservationCreated,
	outbox.ReservationStatusChanged,
	outbox.PaymentSucceeded,
	outbox.PaymentRefunded,
	outbox.PasswordResetRequested,
	outbox.EmailVerificationSent,
	outbox.ReminderDue,
}

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	repo := storage.NewRepository(pool)

	var emailSender email.Sender = email.NoopSender{}
	if smtpHost := strings.TrimSpace(config.String("SMTP_HOST", "")); smtpHost != "" {
		emailSender = email.NewSMTPSender(
			smtpHost,
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", "no-reply@bookly.local"),
			config.String("SMTP_USERNAME", ""),
			config.String("SMTP_PASSWORD", ""),
		)
	} else {
		logger.Warn("SMTP_HOST empty, emails are dropped")
	}
	smsSender := sms.New(
		config.String("SMS_PROVIDER", "noop"),
		config.String("SMS_WEBHOOK_URL", ""),
		config.String("SMS_WEBHOOK_TOKEN", ""),
	)

	brokers := config.String("KAFKA_BROKERS", "")
	dispatcher := dispatch.New(repo, emailSender, smsSender, logger)
	inbox := outbox.NewInbox(pool, "notification-service")
	for _, topic := range topics {
		c := kafkax.NewConsumer(logger, inbox, kafkax.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}, dispatcher.Handle)
		go c.Run(ctx)
	}

	h := handlers.NewNotificationHandler(repo, logger)
	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/api/v1/notifications", httpx.Methods{http.MethodGet: h.List})
	mux.Handle("/api/v1/notifications/read", httpx.Methods{http.MethodPost: h.MarkRead})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(16<<10),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
