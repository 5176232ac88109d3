// Package reconcile is C6's two-way reconciliation between the catalog and
// the object store, grounded on
// original_source/backend/videos/management/commands/sync_all_chapters.py's
// four-phase algorithm (drive-presence gate, diff, import), translated from
// a Django management command into an explicitly-constructed Scanner value
// callers invoke per scope-folder-path.
package reconcile

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
	"github.com/abdul-hamid-achik/media-vault/internal/transcode"
)

// catalogAccess is the subset of *catalog.Queries reconciliation needs,
// narrowed to an interface so tests can substitute an in-memory fake.
type catalogAccess interface {
	DeleteByHierarchyPath(ctx context.Context, owner, hierarchyPath string, kind catalog.Kind) (int, error)
	ListByHierarchyPath(ctx context.Context, owner, hierarchyPath string, kind catalog.Kind) ([]*catalog.Artifact, error)
	DeleteArtifact(ctx context.Context, id string) error
	ImportArtifact(ctx context.Context, a *catalog.Artifact) (string, error)
}

// jobEnqueuer is the subset of the job-queue broker reconciliation needs.
type jobEnqueuer interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

// Scanner performs reconciliation passes against one (Catalog, Store) pair.
type Scanner struct {
	Catalog catalogAccess
	Store   store.Store
	Broker  jobEnqueuer
}

// Result tallies the four counters ReconcileScope returns.
type Result struct {
	VideosAdded   int
	VideosRemoved int
	PDFsAdded     int
	PDFsRemoved   int
}

func (r *Result) add(other Result) {
	r.VideosAdded += other.VideosAdded
	r.VideosRemoved += other.VideosRemoved
	r.PDFsAdded += other.PDFsAdded
	r.PDFsRemoved += other.PDFsRemoved
}

// ReconcileScope runs phases A through D for one owner/hierarchy path.
// Running it twice with no external change yields a zero Result.
func (s *Scanner) ReconcileScope(ctx context.Context, owner string, path []string, hierarchyPath string) (Result, error) {
	log := logger.FromContext(ctx).With("owner", owner, "hierarchy_path", hierarchyPath)

	// Phase A: drive-presence gate.
	folderID, err := s.Store.ResolvePath(ctx, path)
	if err == store.ErrNotFound {
		removed, perr := s.purgeScope(ctx, owner, hierarchyPath)
		if perr != nil {
			return Result{}, perr
		}
		log.Info("scope folder missing, purged catalog rows", "removed", removed.VideosRemoved+removed.PDFsRemoved)
		return removed, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: resolve scope path: %w", err)
	}

	var result Result

	// Phase B+C: videos.
	videoResult, err := s.diffAndImport(ctx, owner, hierarchyPath, folderID, catalog.KindVideo)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: videos: %w", err)
	}
	result.add(videoResult)

	// Phase D: PDFs (same diff+import, no derived assets or sync-metadata job).
	pdfResult, err := s.diffAndImport(ctx, owner, hierarchyPath, folderID, catalog.KindPDF)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: pdfs: %w", err)
	}
	result.add(pdfResult)

	return result, nil
}

func (s *Scanner) purgeScope(ctx context.Context, owner, hierarchyPath string) (Result, error) {
	videosRemoved, err := s.Catalog.DeleteByHierarchyPath(ctx, owner, hierarchyPath, catalog.KindVideo)
	if err != nil {
		return Result{}, err
	}
	pdfsRemoved, err := s.Catalog.DeleteByHierarchyPath(ctx, owner, hierarchyPath, catalog.KindPDF)
	if err != nil {
		return Result{}, err
	}
	return Result{VideosRemoved: videosRemoved, PDFsRemoved: pdfsRemoved}, nil
}

func (s *Scanner) diffAndImport(ctx context.Context, owner, hierarchyPath, folderID string, kind catalog.Kind) (Result, error) {
	filter := store.FilterVideo
	if kind == catalog.KindPDF {
		filter = store.FilterPDF
	}

	children, err := s.Store.ListChildren(ctx, folderID, filter)
	if err != nil {
		return Result{}, fmt.Errorf("list children: %w", err)
	}

	present := make(map[string]bool, len(children))
	containerIDs := make(map[string]bool, len(children))
	byRemoteID := make(map[string]store.Child, len(children))
	for _, c := range children {
		present[c.ID] = true
		byRemoteID[c.ID] = c
		if c.ContainerFolderID != "" {
			containerIDs[c.ContainerFolderID] = true
		}
	}

	rows, err := s.Catalog.ListByHierarchyPath(ctx, owner, hierarchyPath, kind)
	if err != nil {
		return Result{}, fmt.Errorf("list catalog rows: %w", err)
	}

	seenRemoteIDs := make(map[string]bool, len(rows))
	var removed int
	for _, row := range rows {
		if row.RemoteFileID == "" {
			continue
		}
		seenRemoteIDs[row.RemoteFileID] = true

		stillPresent := present[row.RemoteFileID] || (row.RemoteFolderID != "" && containerIDs[row.RemoteFolderID])
		if stillPresent {
			continue
		}

		existsFile, ferr := s.Store.Exists(ctx, row.RemoteFileID)
		existsFolder := false
		if row.RemoteFolderID != "" {
			existsFolder, _ = s.Store.Exists(ctx, row.RemoteFolderID)
		}
		if ferr == nil && !existsFile && !existsFolder {
			if err := s.Catalog.DeleteArtifact(ctx, row.ID); err != nil {
				return Result{}, fmt.Errorf("delete orphan row %s: %w", row.ID, err)
			}
			removed++
		}
	}

	added := 0
	for _, c := range children {
		if seenRemoteIDs[c.ID] {
			continue
		}

		thumbID, previewID, _ := c.DerivedAssets()
		artifactID, err := s.Catalog.ImportArtifact(ctx, &catalog.Artifact{
			Owner:          owner,
			Kind:           kind,
			Title:          c.Name,
			HierarchyPath:  hierarchyPath,
			RemoteFileID:   c.ID,
			RemoteFolderID: c.ContainerFolderID,
			ThumbnailRef:   thumbID,
			PreviewRef:     previewID,
			SizeBytes:      c.Size,
			MimeType:       c.Mime,
		})
		if err != nil {
			return Result{}, fmt.Errorf("import artifact: %w", err)
		}
		added++

		if kind == catalog.KindVideo && (thumbID == "" || previewID == "") {
			s.enqueueSyncMetadata(ctx, artifactID, c.ID)
		}
	}

	if kind == catalog.KindVideo {
		return Result{VideosAdded: added, VideosRemoved: removed}, nil
	}
	return Result{PDFsAdded: added, PDFsRemoved: removed}, nil
}

func (s *Scanner) enqueueSyncMetadata(ctx context.Context, artifactID, remoteFileID string) {
	log := logger.FromContext(ctx)
	if s.Broker == nil {
		return
	}
	if _, err := s.Broker.Enqueue(transcode.SyncMetadataJobType, transcode.SyncMetadataPayload{
		ArtifactID:   artifactID,
		RemoteFileID: remoteFileID,
	}); err != nil {
		log.Warn("failed to enqueue sync-metadata job", "artifact_id", artifactID, "error", err)
	}
}
