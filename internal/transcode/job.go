// Package transcode is the C2 worker-pool transcode engine: for each job
// it runs the external media tool through ffmpeg.Tool to produce a
// 2x-speed variant, a thumbnail, and a preview clip, then hands the three
// objects to the object store and commits the catalog row. Built around a
// VideoTranscodeHandler shape (payload unmarshal, markJobRunning/Failed
// bracket, registry-lookup tool invocation) generalized to this fixed
// three-artifact pipeline.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/pipeline"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
	"github.com/abdul-hamid-achik/media-vault/internal/transcode/ffmpeg"
)

// JobType is the queue name the worker pool drains for transcode work.
const JobType = "transcode"

// Payload is the message body enqueued by the upload-completion and
// chat-download paths.
type Payload struct {
	ArtifactID   string `json:"artifact_id"`
	SpoolPath    string `json:"spool_path"`
	OriginalName string `json:"original_name"`
}

// Dependencies are the collaborators a transcode job needs.
type Dependencies struct {
	Catalog    *catalog.Queries
	Writer     *catalog.Writer
	Store      store.Store
	FFmpeg     ffmpeg.Tool
	Controller *pipeline.Controller
	OutputDir  string
}

// Handler returns the job-queue handler function for JobType, matching the
// standard func(context.Context, *job.Job) error handler signature.
func Handler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		var payload Payload
		if err := j.UnmarshalPayload(&payload); err != nil {
			return middleware.Permanent(fmt.Errorf("transcode: invalid payload: %w", err))
		}

		log := logger.FromContext(ctx).With("job_id", j.ID, "artifact_id", payload.ArtifactID)
		log.Info("transcode job started")

		jobCtx, cancel := context.WithCancel(ctx)
		ticket := deps.Controller.Register(payload.ArtifactID, payload.SpoolPath, deps.OutputDir)
		ticket.SetCanceller(cancel)
		defer deps.Controller.Unregister(payload.ArtifactID)

		err := run(jobCtx, deps, payload)

		if ticket.Cancelled() {
			log.Info("transcode job cancelled")
			cleanupOutputs(deps, payload.ArtifactID)
			if cerr := deps.Writer.UpdateStatus(context.Background(), payload.ArtifactID, catalog.StatusCanceled, "Cancelled by user"); cerr != nil {
				log.Error("failed to commit cancellation", "error", cerr)
			}
			return nil
		}

		if err != nil {
			log.Error("transcode job failed", "error", err)
			cleanupOutputs(deps, payload.ArtifactID)
			if cerr := deps.Writer.UpdateStatus(context.Background(), payload.ArtifactID, catalog.StatusFailed, err.Error()); cerr != nil {
				log.Error("failed to commit failure", "error", cerr)
			}
			return fmt.Errorf("transcode: %w", err)
		}

		log.Info("transcode job completed")
		return nil
	}
}

func run(ctx context.Context, deps *Dependencies, payload Payload) error {
	artifact, err := deps.Catalog.GetArtifact(ctx, payload.ArtifactID)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}

	// Step 1: PROCESSING, progress=5.
	if err := deps.Writer.UpdateStatus(ctx, payload.ArtifactID, catalog.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	commitProgress(deps, payload.ArtifactID, 5, true)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 2: probe.
	probe, err := deps.FFmpeg.ProbeFile(ctx, payload.SpoolPath)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	commitProgress(deps, payload.ArtifactID, 10, false)

	outDir := filepath.Join(deps.OutputDir, payload.ArtifactID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create local output dir: %w", err)
	}

	thumbPath := filepath.Join(outDir, "thumbnail.jpg")
	previewPath := filepath.Join(outDir, "preview.mp4")
	processedPath := filepath.Join(outDir, "Processed_"+payload.OriginalName)

	// Steps 3-5: thumbnail, preview, 2x transform.
	if err := deps.FFmpeg.Thumbnail(ctx, payload.SpoolPath, thumbPath, probe.DurationSeconds); err != nil {
		return fmt.Errorf("generate thumbnail: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := deps.FFmpeg.Preview(ctx, payload.SpoolPath, previewPath, probe.DurationSeconds); err != nil {
		return fmt.Errorf("generate preview: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := deps.FFmpeg.DoubleSpeed(ctx, payload.SpoolPath, processedPath, probe.HasAudio); err != nil {
		return fmt.Errorf("run 2x transform: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 6: processed duration.
	durationSeconds := probe.DurationSeconds / 2
	if probe.DurationSeconds <= 0 {
		if reprobe, err := deps.FFmpeg.ProbeFile(ctx, processedPath); err == nil {
			durationSeconds = reprobe.DurationSeconds
		}
	}
	commitProgress(deps, payload.ArtifactID, 40, false)

	// Step 7a: folder.
	titleNoExt := trimExt(artifact.Title)
	folderPath := append(splitPath(artifact.HierarchyPath), titleNoExt)
	folderID, err := deps.Store.EnsurePath(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("ensure destination folder: %w", err)
	}
	commitProgress(deps, payload.ArtifactID, 42, false)

	// Step 7b: upload the three objects.
	var lastSent int64
	lastTS := time.Now()
	fileID, err := deps.Store.UploadResumable(ctx, processedPath, "Processed_"+payload.OriginalName, folderID, artifact.MimeType, func(frac float64) {
		sent := int64(frac * float64(fileSize(processedPath)))
		if elapsed := time.Since(lastTS); elapsed >= 500*time.Millisecond {
			deps.Controller.RecordBytes(payload.ArtifactID, sent-lastSent, elapsed)
			lastSent, lastTS = sent, time.Now()
		}
	})
	if err != nil {
		return fmt.Errorf("upload processed media: %w", err)
	}
	commitProgress(deps, payload.ArtifactID, 90, false)
	if err := ctx.Err(); err != nil {
		return err
	}

	thumbnailID, err := deps.Store.UploadResumable(ctx, thumbPath, "thumbnail.jpg", folderID, "image/jpeg", nil)
	if err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}
	commitProgress(deps, payload.ArtifactID, 95, false)

	previewID, err := deps.Store.UploadResumable(ctx, previewPath, "preview.mp4", folderID, "video/mp4", nil)
	if err != nil {
		return fmt.Errorf("upload preview: %w", err)
	}
	commitProgress(deps, payload.ArtifactID, 98, false)

	// Step 8: commit.
	if err := deps.Writer.Complete(ctx, payload.ArtifactID, catalog.CompletionFields{
		RemoteFileID:    fileID,
		RemoteFolderID:  folderID,
		ThumbnailRef:    thumbnailID,
		PreviewRef:      previewID,
		DurationSeconds: durationSeconds,
		SizeBytes:       fileSize(processedPath),
		MimeType:        artifact.MimeType,
	}); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}

	cleanupLocal(payload.SpoolPath, outDir)
	return nil
}

func commitProgress(deps *Dependencies, artifactID string, pct int, statusChanging bool) {
	if deps.Controller.ShouldCommitProgress(artifactID, pct, statusChanging) {
		deps.Writer.UpdateProgress(artifactID, pct)
	}
}

func cleanupOutputs(deps *Dependencies, artifactID string) {
	_ = os.RemoveAll(filepath.Join(deps.OutputDir, artifactID))
}

func cleanupLocal(spoolPath, outDir string) {
	_ = os.Remove(spoolPath)
	_ = os.RemoveAll(outDir)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func trimExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func splitPath(hierarchyPath string) []string {
	return splitSlash(hierarchyPath)
}

func splitSlash(p string) []string {
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
