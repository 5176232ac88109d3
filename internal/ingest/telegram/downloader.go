package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/pipeline"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
	"github.com/abdul-hamid-achik/media-vault/internal/transcode"
)

// JobType is the queue name the worker pool drains for chat-download work.
const JobType = "chat_download"

// defaultConcurrency matches the original ThreadPoolExecutor(max_workers=3).
const defaultConcurrency = 3

// Item is one message selected for download, carrying the descriptor the
// caller already has from a FetchMedia listing.
type Item struct {
	ArtifactID string `json:"artifact_id"`
	MessageID  int    `json:"message_id"`
	Name       string `json:"name"`
	Mime       string `json:"mime"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Payload is one download batch: every item shares a channel and
// destination hierarchy path, and downloads under one shared semaphore.
type Payload struct {
	Owner         string `json:"owner"`
	GroupID       string `json:"group_id"`
	HierarchyPath string `json:"hierarchy_path"`
	Items         []Item `json:"items"`
}

// jobEnqueuer is the subset of the job-queue broker this package needs to
// hand a video artifact off to C2.
type jobEnqueuer interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

// Dependencies are the collaborators a chat-download batch needs.
type Dependencies struct {
	Catalog     *catalog.Queries
	Writer      *catalog.Writer
	Store       store.Store
	Client      *Client
	Controller  *pipeline.Controller
	Broker      jobEnqueuer
	SpoolDir    string
	Concurrency int // 0 means defaultConcurrency
}

func kindFromMime(mime string) catalog.Kind {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return catalog.KindVideo
	case mime == "application/pdf":
		return catalog.KindPDF
	default:
		return catalog.KindOther
	}
}

// EnqueueDownloads creates one PENDING artifact per item and enqueues the
// batch job that downloads them, the equivalent of the original
// download_and_upload entry point. Returns the created artifact ids in
// item order.
func EnqueueDownloads(ctx context.Context, deps *Dependencies, owner, groupID, hierarchyPath string, items []Item) ([]string, error) {
	artifactIDs := make([]string, 0, len(items))
	for i, item := range items {
		id, err := deps.Catalog.CreateArtifact(ctx, &catalog.Artifact{
			Owner:         owner,
			Kind:          kindFromMime(item.Mime),
			Title:         NormalizeName(item.Name),
			HierarchyPath: hierarchyPath,
			MimeType:      item.Mime,
			SizeBytes:     item.SizeBytes,
		})
		if err != nil {
			return artifactIDs, fmt.Errorf("create artifact for message %d: %w", item.MessageID, err)
		}
		items[i].ArtifactID = id
		artifactIDs = append(artifactIDs, id)
	}

	if len(artifactIDs) == 0 {
		return artifactIDs, nil
	}

	if _, err := deps.Broker.Enqueue(JobType, Payload{
		Owner:         owner,
		GroupID:       groupID,
		HierarchyPath: hierarchyPath,
		Items:         items,
	}); err != nil {
		return artifactIDs, fmt.Errorf("enqueue chat download batch: %w", err)
	}
	return artifactIDs, nil
}

// Handler returns the job-queue handler for JobType. Every item in the
// batch downloads under a shared semaphore of width deps.Concurrency;
// video items hand off to C2, everything else uploads directly via C4.
func Handler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		var payload Payload
		if err := j.UnmarshalPayload(&payload); err != nil {
			return middleware.Permanent(fmt.Errorf("chat_download: invalid payload: %w", err))
		}

		log := logger.FromContext(ctx).With("job_id", j.ID, "group_id", payload.GroupID)
		log.Info("chat download batch started", "items", len(payload.Items))

		width := int64(deps.Concurrency)
		if width < 1 {
			width = defaultConcurrency
		}
		sem := semaphore.NewWeighted(width)

		var wg sync.WaitGroup
		for _, item := range payload.Items {
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Info("chat download batch cancelled before every item started")
				break
			}
			wg.Add(1)
			go func(item Item) {
				defer wg.Done()
				defer sem.Release(1)
				if err := downloadItem(ctx, deps, payload, item); err != nil {
					log.Error("chat download item failed", "artifact_id", item.ArtifactID, "message_id", item.MessageID, "error", err)
				}
			}(item)
		}
		wg.Wait()

		log.Info("chat download batch finished")
		return nil
	}
}

func downloadItem(ctx context.Context, deps *Dependencies, payload Payload, item Item) error {
	itemCtx, cancel := context.WithCancel(ctx)
	ticket := deps.Controller.Register(item.ArtifactID, "", "")
	ticket.SetCanceller(cancel)
	defer deps.Controller.Unregister(item.ArtifactID)

	if err := deps.Writer.UpdateStatus(itemCtx, item.ArtifactID, catalog.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	commitProgress(deps, item.ArtifactID, 5, true)

	cleanName := NormalizeName(item.Name)
	spoolName := disallowedPathChars.ReplaceAllString(cleanName, "_")
	destPath := filepath.Join(deps.SpoolDir, item.ArtifactID+"_"+spoolName)

	var lastRead int64
	lastTS := time.Now()
	_, mime, err := deps.Client.Download(itemCtx, payload.GroupID, item.MessageID, destPath, func(read, total int64) {
		if elapsed := time.Since(lastTS); elapsed >= 500*time.Millisecond {
			deps.Controller.RecordBytes(item.ArtifactID, read-lastRead, elapsed)
			lastRead, lastTS = read, time.Now()
		}
		commitProgress(deps, item.ArtifactID, scalePct(read, total, 5, 40), false)
	})

	if ticket.Cancelled() {
		_ = os.Remove(destPath)
		return deps.Writer.UpdateStatus(context.Background(), item.ArtifactID, catalog.StatusCanceled, "Cancelled by user")
	}
	if err != nil {
		_ = os.Remove(destPath)
		_ = deps.Writer.UpdateStatus(context.Background(), item.ArtifactID, catalog.StatusFailed, err.Error())
		return fmt.Errorf("download message %d: %w", item.MessageID, err)
	}
	commitProgress(deps, item.ArtifactID, 40, false)

	if mime == "" {
		mime = item.Mime
	}

	if kindFromMime(mime) == catalog.KindVideo {
		if _, err := deps.Broker.Enqueue(transcode.JobType, transcode.Payload{
			ArtifactID:   item.ArtifactID,
			SpoolPath:    destPath,
			OriginalName: cleanName,
		}); err != nil {
			_ = os.Remove(destPath)
			_ = deps.Writer.UpdateStatus(context.Background(), item.ArtifactID, catalog.StatusFailed, err.Error())
			return fmt.Errorf("enqueue transcode: %w", err)
		}
		return nil
	}

	return uploadDirect(itemCtx, deps, item, payload.HierarchyPath, cleanName, destPath, mime)
}

func uploadDirect(ctx context.Context, deps *Dependencies, item Item, hierarchyPath, cleanName, localPath, mime string) error {
	if err := ctx.Err(); err != nil {
		_ = os.Remove(localPath)
		return deps.Writer.UpdateStatus(context.Background(), item.ArtifactID, catalog.StatusCanceled, "Cancelled by user")
	}

	folderID, err := deps.Store.EnsurePath(ctx, splitHierarchy(hierarchyPath))
	if err != nil {
		_ = os.Remove(localPath)
		_ = deps.Writer.UpdateStatus(context.Background(), item.ArtifactID, catalog.StatusFailed, err.Error())
		return fmt.Errorf("ensure destination folder: %w", err)
	}
	commitProgress(deps, item.ArtifactID, 45, false)

	fileID, err := deps.Store.UploadResumable(ctx, localPath, cleanName, folderID, mime, func(frac float64) {
		commitProgress(deps, item.ArtifactID, scalePct(int64(frac*1000), 1000, 45, 95), false)
	})
	if err != nil {
		_ = os.Remove(localPath)
		_ = deps.Writer.UpdateStatus(context.Background(), item.ArtifactID, catalog.StatusFailed, err.Error())
		return fmt.Errorf("upload: %w", err)
	}

	if err := deps.Writer.Complete(ctx, item.ArtifactID, catalog.CompletionFields{
		RemoteFileID:   fileID,
		RemoteFolderID: folderID,
		SizeBytes:      fileSize(localPath),
		MimeType:       mime,
	}); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}

	_ = os.Remove(localPath)
	return nil
}

func commitProgress(deps *Dependencies, artifactID string, pct int, statusChanging bool) {
	if deps.Controller.ShouldCommitProgress(artifactID, pct, statusChanging) {
		deps.Writer.UpdateProgress(artifactID, pct)
	}
}

// scalePct maps read/total onto [lo, hi], clamped, with total<=0 treated as
// "no usable total yet" (stays at lo).
func scalePct(read, total int64, lo, hi int) int {
	if total <= 0 {
		return lo
	}
	frac := float64(read) / float64(total)
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	pct := lo + int(frac*float64(hi-lo))
	if pct < lo {
		return lo
	}
	if pct > hi {
		return hi
	}
	return pct
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func splitHierarchy(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			if i > start {
				out = append(out, p[start:i])
			}
			start = i + 1
		}
	}
	if start < len(p) {
		out = append(out, p[start:])
	}
	return out
}
