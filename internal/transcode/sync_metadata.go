package transcode

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
)

// SyncMetadataJobType is the queue C6 enqueues onto after importing a video
// discovered out-of-band, to backfill its derived metadata.
const SyncMetadataJobType = "sync_metadata"

// SyncMetadataPayload identifies the already-imported artifact and the
// object-store file to re-derive thumbnail/preview/duration from.
type SyncMetadataPayload struct {
	ArtifactID   string `json:"artifact_id"`
	RemoteFileID string `json:"remote_file_id"`
}

// SyncMetadataHandler downloads the primary file to a local temp, probes
// duration, regenerates any missing thumbnail or preview, uploads them next
// to the primary, and updates the row. Failures are logged and the job
// completes successfully regardless — this step never blocks the import.
func SyncMetadataHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		var payload SyncMetadataPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			return middleware.Permanent(fmt.Errorf("sync_metadata: invalid payload: %w", err))
		}

		log := logger.FromContext(ctx).With("job_id", j.ID, "artifact_id", payload.ArtifactID)

		if err := syncMetadata(ctx, deps, payload); err != nil {
			log.Warn("sync-metadata job failed, leaving row as-is", "error", err)
		}
		return nil
	}
}

func syncMetadata(ctx context.Context, deps *Dependencies, payload SyncMetadataPayload) error {
	artifact, err := deps.Catalog.GetArtifact(ctx, payload.ArtifactID)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}

	tmpDir := filepath.Join(deps.OutputDir, "sync-"+payload.ArtifactID)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, "primary")
	if err := downloadToFile(ctx, deps, payload.RemoteFileID, localPath); err != nil {
		return fmt.Errorf("download primary: %w", err)
	}

	probe, err := deps.FFmpeg.ProbeFile(ctx, localPath)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	needsFolder := artifact.RemoteFolderID == ""
	folderID := artifact.RemoteFolderID
	if needsFolder {
		titleNoExt := trimExt(artifact.Title)
		folderPath := append(splitPath(artifact.HierarchyPath), titleNoExt)
		folderID, err = deps.Store.EnsurePath(ctx, folderPath)
		if err != nil {
			return fmt.Errorf("ensure destination folder: %w", err)
		}
		if err := deps.Store.Move(ctx, payload.RemoteFileID, folderID); err != nil {
			return fmt.Errorf("move primary into wrapping folder: %w", err)
		}
	}

	thumbnailRef := artifact.ThumbnailRef
	if thumbnailRef == "" {
		thumbPath := filepath.Join(tmpDir, "thumbnail.jpg")
		if err := deps.FFmpeg.Thumbnail(ctx, localPath, thumbPath, probe.DurationSeconds); err != nil {
			return fmt.Errorf("regenerate thumbnail: %w", err)
		}
		thumbnailRef, err = deps.Store.UploadResumable(ctx, thumbPath, "thumbnail.jpg", folderID, "image/jpeg", nil)
		if err != nil {
			return fmt.Errorf("upload thumbnail: %w", err)
		}
	}

	previewRef := artifact.PreviewRef
	if previewRef == "" {
		previewPath := filepath.Join(tmpDir, "preview.mp4")
		if err := deps.FFmpeg.Preview(ctx, localPath, previewPath, probe.DurationSeconds); err != nil {
			return fmt.Errorf("regenerate preview: %w", err)
		}
		previewRef, err = deps.Store.UploadResumable(ctx, previewPath, "preview.mp4", folderID, "video/mp4", nil)
		if err != nil {
			return fmt.Errorf("upload preview: %w", err)
		}
	}

	return deps.Writer.Complete(ctx, payload.ArtifactID, catalog.CompletionFields{
		RemoteFileID:    payload.RemoteFileID,
		RemoteFolderID:  folderID,
		ThumbnailRef:    thumbnailRef,
		PreviewRef:      previewRef,
		DurationSeconds: probe.DurationSeconds,
		SizeBytes:       artifact.SizeBytes,
		MimeType:        artifact.MimeType,
	})
}

func downloadToFile(ctx context.Context, deps *Dependencies, remoteFileID, localPath string) error {
	body, err := deps.Store.DownloadRange(ctx, remoteFileID, 0, -1)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, body)
	return err
}
