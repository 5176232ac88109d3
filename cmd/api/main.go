package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/config"
	"github.com/abdul-hamid-achik/media-vault/internal/health"
	"github.com/abdul-hamid-achik/media-vault/internal/httpapi"
	"github.com/abdul-hamid-achik/media-vault/internal/ingest/spool"
	"github.com/abdul-hamid-achik/media-vault/internal/ingest/telegram"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/metrics"
	"github.com/abdul-hamid-achik/media-vault/internal/pipeline"
	"github.com/abdul-hamid-achik/media-vault/internal/reconcile"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
	"github.com/abdul-hamid-achik/media-vault/internal/store/drive"
	"github.com/abdul-hamid-achik/media-vault/internal/stream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()
	log.Info("configuration loaded")

	ctx := context.Background()

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("database connected")

	log.Info("connecting to object store")
	driveClient, err := drive.New(ctx, drive.Config{
		CredentialsPath: cfg.ObjectStoreCredentialsPath,
		RootFolderID:    cfg.ObjectStoreRootFolderID,
	})
	if err != nil {
		return fmt.Errorf("failed to create object store client: %w", err)
	}
	var objectStore store.Store = driveClient
	objectStore = store.Instrument(objectStore)
	log.Info("object store connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := broker.NewRedisStreamsBroker(redisClient)
	log.Info("broker initialized")

	queries := catalog.New(pool)
	writer := catalog.NewWriter(ctx, queries, cfg.DBWriterWorkers)
	controller := pipeline.NewController()

	spoolReceiver := spool.New(spool.Config{
		SpoolDir:      cfg.SpoolDir,
		MaxUploadSize: cfg.MaxUploadSizeBytes,
		TTL:           cfg.SpoolTTL,
	})
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	go spoolReceiver.StartSweep(sweepCtx, time.Hour)

	brokerAdapter := httpapi.NewBrokerAdapter(b)

	var tgClient *telegram.Client
	if cfg.TelegramAPIID != 0 && cfg.TelegramAPIHash != "" {
		log.Info("connecting telegram session")
		tgClient, err = telegram.NewClient(ctx, telegram.Config{
			APIID:       cfg.TelegramAPIID,
			APIHash:     cfg.TelegramAPIHash,
			SessionPath: cfg.TelegramSessionPath,
		})
		if err != nil {
			return fmt.Errorf("failed to connect telegram session: %w", err)
		}
		log.Info("telegram session connected")
	} else {
		log.Info("telegram integration not configured, chat endpoints disabled")
	}

	handlers := &httpapi.Handlers{
		Spool:      spoolReceiver,
		Catalog:    queries,
		Writer:     writer,
		Broker:     brokerAdapter,
		Stream:     &stream.Server{Catalog: queries, Store: objectStore},
		Reconciler: &reconcile.Scanner{Catalog: queries, Store: objectStore, Broker: brokerAdapter},
		Controller: controller,
		Telegram:   tgClient,
	}

	metrics.SetAppInfo("1.0.0", cfg.Environment, "api")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/upload/chunk", handlers.UploadChunk)
	mux.HandleFunc("/upload/complete", handlers.CompleteUpload)
	mux.HandleFunc("/upload/abort", handlers.AbortUpload)
	mux.HandleFunc("/jobs/cancel", handlers.CancelJob)
	mux.HandleFunc("/stream", handlers.StreamArtifact)
	mux.HandleFunc("/assets", handlers.StreamAsset)
	mux.HandleFunc("/reconcile", handlers.ReconcileScope)
	mux.HandleFunc("/chat/media", handlers.ChatMedia)
	mux.HandleFunc("/chat/download", handlers.EnqueueChatDownload)

	healthChecker := health.NewChecker(pool, redisClient).WithStorage(objectStore)
	mux.HandleFunc("/healthz", health.LivenessHandler())
	mux.HandleFunc("/readyz", health.ReadinessHandler(healthChecker))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		spoolReceiver.StopSweep()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("forced shutdown: %w", err)
		}
	}

	log.Info("server stopped gracefully")
	return nil
}
