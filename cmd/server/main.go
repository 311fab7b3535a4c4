package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/api"
	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/config"
	"github.com/gsarma/codejudge/internal/natshandler"
	"github.com/gsarma/codejudge/internal/store"
	"github.com/gsarma/codejudge/internal/worker"
)

func main() {
	cfg := config.Load(zap.NewNop())
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Judge0.APIKey == "" {
		logger.Warn("RAPIDAPI_KEY is not set; every execution will fail until it is configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := code.NewJudge0Client(cfg.Judge0, code.WithLogger(logger.Named("judge0")))

	if cfg.Mode == "nats" {
		runNATS(ctx, cfg, provider, logger)
		return
	}

	// queries stays a nil interface without a database so the API falls
	// back to sync-only execution.
	var queries store.Querier
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := store.Migrate(ctx, pool); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		queries = store.New(pool)
	} else if cfg.Mode != "api" {
		logger.Fatal("DATABASE_URL is required to run the worker")
	} else {
		logger.Warn("DATABASE_URL is not set; only ?sync=true execution is available")
	}

	router := gin.New()
	router.Use(api.RequestLogger(logger.Named("http")), gin.Recovery())
	h := api.RegisterRoutes(router, queries, provider, cfg, logger.Named("api"))

	newWorker := func() *worker.Worker {
		return worker.New(queries, h, cfg.WorkerConcurrency, worker.WithLogger(logger.Named("worker")))
	}

	switch cfg.Mode {
	case "worker":
		logger.Info("starting in worker-only mode")
		newWorker().Start(ctx) // blocks until ctx cancelled
	case "api":
		// API-only: no embedded worker goroutines; scale workers separately.
		logger.Info("starting in api-only mode")
		serve(ctx, cfg.Port, router, logger)
	default:
		// Default: run both API server and worker in the same process.
		logger.Info("starting api and worker")
		workerDone := make(chan struct{})
		go func() {
			newWorker().Start(ctx)
			close(workerDone)
		}()
		serve(ctx, cfg.Port, router, logger)
		<-workerDone // in-flight jobs record their status before the pool closes
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests. Synchronous executions can take over a minute, hence the long grace period.
func serve(ctx context.Context, port string, handler http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runNATS(ctx context.Context, cfg config.Config, provider code.Provider, logger *zap.Logger) {
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal("Failed to connect to NATS",
			zap.String("url", cfg.NatsURL),
			zap.Error(err))
	}
	defer nc.Close()

	responder, err := natshandler.Subscribe(ctx, nc, provider, cfg.NatsConcurrency, logger.Named("nats"))
	if err != nil {
		logger.Fatal("failed to subscribe", zap.String("subject", natshandler.ExecuteSubject), zap.Error(err))
	}
	logger.Info("answering execution requests",
		zap.String("subject", natshandler.ExecuteSubject),
		zap.Int("concurrency", cfg.NatsConcurrency))

	<-ctx.Done()
	if err := responder.Stop(); err != nil {
		logger.Warn("failed to unsubscribe", zap.Error(err))
	}
	if err := nc.Drain(); err != nil {
		logger.Warn("failed to drain NATS connection", zap.Error(err))
	}
}
