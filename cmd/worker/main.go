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
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/config"
	"github.com/abdul-hamid-achik/media-vault/internal/health"
	"github.com/abdul-hamid-achik/media-vault/internal/httpapi"
	"github.com/abdul-hamid-achik/media-vault/internal/ingest/telegram"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/metrics"
	"github.com/abdul-hamid-achik/media-vault/internal/pipeline"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
	"github.com/abdul-hamid-achik/media-vault/internal/store/drive"
	"github.com/abdul-hamid-achik/media-vault/internal/transcode"
	"github.com/abdul-hamid-achik/media-vault/internal/transcode/ffmpeg"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Logger()

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

	b := broker.NewRedisStreamsBroker(redisClient,
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	queries := catalog.New(pool)
	writer := catalog.NewWriter(ctx, queries, cfg.DBWriterWorkers)
	controller := pipeline.NewController()

	metrics.SetAppInfo("1.0.0", cfg.Environment, "worker")
	metrics.SetWorkerPoolSize(cfg.TranscodeWorkers)

	deps := &transcode.Dependencies{
		Catalog:    queries,
		Writer:     writer,
		Store:      objectStore,
		FFmpeg:     ffmpeg.Tool{},
		Controller: controller,
		OutputDir:  cfg.SpoolDir,
	}

	log.Info("recovering interrupted jobs")
	if err := transcode.RecoverInterrupted(ctx, deps); err != nil {
		log.Error("failed to recover interrupted jobs", "error", err)
	}

	var extraRegistrations []transcode.Registration
	if cfg.TelegramAPIID != 0 && cfg.TelegramAPIHash != "" {
		log.Info("connecting telegram session")
		tgClient, err := telegram.NewClient(ctx, telegram.Config{
			APIID:       cfg.TelegramAPIID,
			APIHash:     cfg.TelegramAPIHash,
			SessionPath: cfg.TelegramSessionPath,
		})
		if err != nil {
			return fmt.Errorf("failed to connect telegram session: %w", err)
		}
		log.Info("telegram session connected")

		tgDeps := &telegram.Dependencies{
			Catalog:     queries,
			Writer:      writer,
			Store:       objectStore,
			Client:      tgClient,
			Controller:  controller,
			Broker:      httpapi.NewBrokerAdapter(b),
			SpoolDir:    cfg.TelegramDownloadDir,
			Concurrency: cfg.DownloadConcurrency,
		}
		extraRegistrations = append(extraRegistrations, transcode.Registration{
			JobType: telegram.JobType,
			Handler: telegram.Handler(tgDeps),
		})
	} else {
		log.Info("telegram integration not configured, chat downloads disabled")
	}

	log.Info("building worker pool", "concurrency", cfg.TranscodeWorkers)
	pool2 := transcode.BuildPool(b, deps, zerologger, transcode.PoolConfig{
		Concurrency:     cfg.TranscodeWorkers,
		Queues:          []string{"default"},
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
		JobTimeout:      cfg.JobTimeout,
	}, extraRegistrations...)

	healthChecker := health.NewChecker(pool, redisClient).WithStorage(objectStore)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", health.LivenessHandler())
	metricsMux.HandleFunc("/readyz", health.ReadinessHandler(healthChecker))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	go func() {
		log.Info("metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, 1)
	go func() {
		log.Info("starting worker pool")
		poolErr <- pool2.Start(ctx)
	}()

	select {
	case err := <-poolErr:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := pool2.Stop(shutdownCtx); err != nil {
			log.Error("error stopping pool", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping metrics server", "error", err)
		}
		cancel()
	}

	log.Info("worker pool stopped gracefully")
	return nil
}
