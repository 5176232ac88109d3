package catalog

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/media-vault/internal/logger"
)

// writeRequest is a unit of work submitted to the DB-writer pool. Progress
// writes are best-effort (errors only logged); terminal writes must commit,
// retried at least once before giving up.
type writeRequest struct {
	artifactID string
	terminal   bool
	apply      func(ctx context.Context, q *Queries) error
	done       chan error // non-nil only for terminal writes the caller awaits
}

// Writer serializes every catalog mutation for a given artifact_id through
// one of a small number of worker goroutines, generalizing the
// markJobRunning/markJobCompleted/markJobFailed helper pattern into a
// bounded pool so all writes for one artifact_id funnel through a single
// lane in order.
type Writer struct {
	queries *Queries
	workers int
	lanes   []chan writeRequest
}

// NewWriter starts `workers` lanes (default 2). Requests for the same
// artifact_id always land on the same lane (hashed), so per-artifact
// ordering is preserved without a single global bottleneck.
func NewWriter(ctx context.Context, q *Queries, workers int) *Writer {
	if workers <= 0 {
		workers = 2
	}
	w := &Writer{
		queries: q,
		workers: workers,
		lanes:   make([]chan writeRequest, workers),
	}
	for i := range w.lanes {
		w.lanes[i] = make(chan writeRequest, 256)
		go w.run(ctx, w.lanes[i])
	}
	return w
}

func (w *Writer) run(ctx context.Context, lane chan writeRequest) {
	log := logger.Default()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-lane:
			err := req.apply(ctx, w.queries)
			if err != nil && req.terminal {
				// One durable retry for state-transition writes.
				err = req.apply(ctx, w.queries)
			}
			if err != nil {
				log.Error("catalog write failed",
					"artifact_id", req.artifactID, "terminal", req.terminal, "error", err)
			}
			if req.done != nil {
				req.done <- err
				close(req.done)
			}
		}
	}
}

func (w *Writer) lane(artifactID string) chan writeRequest {
	var h uint32
	for i := 0; i < len(artifactID); i++ {
		h = h*31 + uint32(artifactID[i])
	}
	return w.lanes[int(h)%len(w.lanes)]
}

// UpdateProgress enqueues a best-effort progress write; never blocks the
// caller beyond the channel send and, when the lane is full, drops the
// write and logs a warning (the channel is buffered, not unbounded).
func (w *Writer) UpdateProgress(artifactID string, progress int) {
	req := writeRequest{
		artifactID: artifactID,
		apply: func(ctx context.Context, q *Queries) error {
			return q.UpdateProgress(ctx, artifactID, progress)
		},
	}
	select {
	case w.lane(artifactID) <- req:
	default:
		logger.Default().Warn("progress write dropped, lane saturated", "artifact_id", artifactID)
	}
}

// UpdateStatus enqueues a must-commit state transition and blocks the
// caller until it has been applied (with its retry) so that callers that
// need to observe the write's outcome (e.g. startup recovery) can.
func (w *Writer) UpdateStatus(ctx context.Context, artifactID string, status Status, errMsg string) error {
	done := make(chan error, 1)
	req := writeRequest{
		artifactID: artifactID,
		terminal:   true,
		done:       done,
		apply: func(ctx context.Context, q *Queries) error {
			return q.UpdateStatus(ctx, artifactID, status, errMsg)
		},
	}
	select {
	case w.lane(artifactID) <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete enqueues the terminal COMPLETED write and blocks until applied.
func (w *Writer) Complete(ctx context.Context, artifactID string, fields CompletionFields) error {
	done := make(chan error, 1)
	req := writeRequest{
		artifactID: artifactID,
		terminal:   true,
		done:       done,
		apply: func(ctx context.Context, q *Queries) error {
			return q.CompleteArtifact(ctx, artifactID, fields)
		},
	}
	select {
	case w.lane(artifactID) <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitFor sleeps for d to give queued writes time to drain; it does not
// inspect the lanes, so it does not confirm that any write was applied.
func WaitFor(d time.Duration) { time.Sleep(d) }
