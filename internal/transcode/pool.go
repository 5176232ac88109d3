package transcode

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
)

// PoolConfig mirrors the knobs cmd/worker/main.go threads through from
// config.Config into the job-queue pool.
type PoolConfig struct {
	Concurrency     int
	Queues          []string
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	JobTimeout      time.Duration
}

// Registration is one extra (job type, handler) pair BuildPool registers
// alongside transcode's own two job types, letting other packages (chat
// download) share the one worker pool and registry instead of running a
// second pool.
type Registration struct {
	JobType string
	Handler func(context.Context, *job.Job) error
}

// BuildPool wires a job-queue worker.Pool against deps' job types, following
// a standard registration order: registry creation, handler registration,
// middleware stack, pool construction.
func BuildPool(b *broker.RedisStreamsBroker, deps *Dependencies, zl zerolog.Logger, cfg PoolConfig, extra ...Registration) *worker.Pool {
	registry := worker.NewRegistry()
	_ = registry.Register(JobType, Handler(deps))
	_ = registry.Register(SyncMetadataJobType, SyncMetadataHandler(deps))
	for _, r := range extra {
		_ = registry.Register(r.JobType, r.Handler)
	}

	registry.Use(
		middleware.RecoveryMiddleware(zl),
		middleware.LoggingMiddleware(zl),
		middleware.TimeoutMiddleware(cfg.JobTimeout),
	)

	queues := cfg.Queues
	if len(queues) == 0 {
		queues = []string{"default"}
	}

	return worker.NewPool(b, registry,
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithPoolQueues(queues),
		worker.WithPoolPollInterval(cfg.PollInterval),
		worker.WithShutdownTimeout(cfg.ShutdownTimeout),
		worker.WithPoolLogger(zl),
	)
}

// RecoverInterrupted flips any Artifact still PROCESSING to FAILED with
// "interrupted by restart", run once before Pool.Start, mirroring a
// markJobFailed startup-recovery call.
func RecoverInterrupted(ctx context.Context, deps *Dependencies) error {
	rows, err := deps.Catalog.ListProcessing(ctx)
	if err != nil {
		return err
	}
	for _, a := range rows {
		_ = deps.Writer.UpdateStatus(ctx, a.ID, catalog.StatusFailed, "interrupted by restart")
	}
	return nil
}
