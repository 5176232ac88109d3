// cmd/reconcile is the scheduled two-way reconciliation run (C6): config,
// connect, run, log summary, exit. Reimplements a per-chapter sync loop as
// a per-scope fan-out bounded by maxConcurrentScopes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/config"
	"github.com/abdul-hamid-achik/media-vault/internal/httpapi"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/reconcile"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
	"github.com/abdul-hamid-achik/media-vault/internal/store/drive"
)

const maxConcurrentScopes = 4

func main() {
	if err := run(); err != nil {
		slog.Error("reconcile failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("starting reconciliation run")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

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
	log.Info("object store connected")

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()
	b := broker.NewRedisStreamsBroker(redisClient)

	queries := catalog.New(pool)
	scanner := &reconcile.Scanner{
		Catalog: queries,
		Store:   objectStore,
		Broker:  httpapi.NewBrokerAdapter(b),
	}

	scopes, err := queries.DistinctScopes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scopes: %w", err)
	}
	log.Info("scopes discovered", "count", len(scopes))

	var (
		totalVideosAdded, totalVideosRemoved int
		totalPDFsAdded, totalPDFsRemoved     int
		mu                                   sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentScopes)

	for _, scope := range scopes {
		scope := scope
		g.Go(func() error {
			path := strings.Split(scope.HierarchyPath, "/")
			result, err := scanner.ReconcileScope(gctx, scope.Owner, path, scope.HierarchyPath)
			if err != nil {
				log.Error("scope reconciliation failed", "owner", scope.Owner, "hierarchy_path", scope.HierarchyPath, "error", err)
				return nil // one bad scope must not abort the run
			}

			mu.Lock()
			totalVideosAdded += result.VideosAdded
			totalVideosRemoved += result.VideosRemoved
			totalPDFsAdded += result.PDFsAdded
			totalPDFsRemoved += result.PDFsRemoved
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("reconciliation run failed: %w", err)
	}

	log.Info("reconciliation completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"scopes", len(scopes),
		"videos_added", totalVideosAdded,
		"videos_removed", totalVideosRemoved,
		"pdfs_added", totalPDFsAdded,
		"pdfs_removed", totalPDFsRemoved,
	)

	return nil
}
