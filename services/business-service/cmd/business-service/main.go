package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bookly-app/bookly/libs/config"
	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/grpcx"
	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/kafkax"
	otelx "github.com/bookly-app/bookly/libs/otel"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/runtime"
	"github.com/bookly-app/bookly/services/business-service/internal/handlers"
	"github.com/bookly-app/bookly/services/business-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.Load()
	service := config.String("SERVICE_NAME", "business-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
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

	h := handlers.New(repo, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/api/v1/businesses", httpx.Methods{
		http.MethodGet:  h.Search,
		http.MethodPost: h.Create,
	})
	mux.Handle("/api/v1/businesses/{ref}", httpx.Methods{
		http.MethodGet: h.Get,
		http.MethodPut: h.Update,
	})
	mux.Handle("/api/v1/industries", httpx.Methods{http.MethodGet: h.ListIndustries})
	mux.Handle("/api/v1/services", httpx.Methods{
		http.MethodGet:  h.ListServices,
		http.MethodPost: h.CreateService,
	})
	mux.Handle("/api/v1/services/{id}", httpx.Methods{http.MethodPut: h.UpdateService})
	mux.Handle("/api/v1/business-hours", httpx.Methods{
		http.MethodGet: h.GetHours,
		http.MethodPut: h.ReplaceHours,
	})
	mux.Handle("/api/v1/reviews", httpx.Methods{
		http.MethodGet:  h.ListReviews,
		http.MethodPost: h.CreateReview,
	})
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, "business")
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

	health := grpcx.NewHealthServer(logger, service)
	health.SetServing(true)
	go func() {
		logger.Info("grpc health server starting", "addr", ":"+grpcPort)
		if err := health.Serve(ctx, ":"+grpcPort); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
