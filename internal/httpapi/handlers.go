// Package httpapi is the thin controller layer binding C1 (chunked
// upload), C2 (enqueue + cancel), C5 (range streaming), and C6 (manual
// reconciliation trigger) to concrete URL paths. The HTTP routing and
// permission layer itself lives with an external collaborator: this
// package defines only the minimal, already-authenticated binding a real
// router would front, following a request-parsing-then-delegate shape.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"

	"github.com/abdul-hamid-achik/media-vault/internal/apperror"
	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/ingest/spool"
	"github.com/abdul-hamid-achik/media-vault/internal/ingest/telegram"
	"github.com/abdul-hamid-achik/media-vault/internal/pipeline"
	"github.com/abdul-hamid-achik/media-vault/internal/reconcile"
	"github.com/abdul-hamid-achik/media-vault/internal/stream"
	"github.com/abdul-hamid-achik/media-vault/internal/transcode"
)

// jobEnqueuer mirrors the narrow interface internal/reconcile defines,
// satisfied directly by *broker.RedisStreamsBroker via the adapter below.
type jobEnqueuer interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

// brokerAdapter gives job-queue's broker the (jobType, payload) Enqueue
// shape the core packages depend on.
type brokerAdapter struct {
	broker *broker.RedisStreamsBroker
}

func NewBrokerAdapter(b *broker.RedisStreamsBroker) jobEnqueuer {
	return &brokerAdapter{broker: b}
}

func (a *brokerAdapter) Enqueue(jobType string, payload interface{}) (string, error) {
	j, err := job.New(jobType, payload)
	if err != nil {
		return "", err
	}
	if err := a.broker.Enqueue(context.Background(), j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// Handlers bundles every collaborator the thin routing layer delegates to.
type Handlers struct {
	Spool      *spool.Receiver
	Catalog    *catalog.Queries
	Writer     *catalog.Writer
	Broker     jobEnqueuer
	Stream     *stream.Server
	Reconciler *reconcile.Scanner
	Controller *pipeline.Controller
	Telegram   *telegram.Client // nil when the chat-channel integration is not configured
}

func ownerFromRequest(r *http.Request) string {
	return r.Header.Get("X-Owner-Id")
}

// UploadChunk handles one chunk of a chunked upload (C1).
func (h *Handlers) UploadChunk(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	if owner == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	uploadID := r.URL.Query().Get("upload_id")
	chunkIndex, err1 := strconv.Atoi(r.URL.Query().Get("chunk_index"))
	totalChunks, err2 := strconv.Atoi(r.URL.Query().Get("total_chunks"))
	filename := r.URL.Query().Get("filename")
	if uploadID == "" || filename == "" || err1 != nil || err2 != nil {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	if err := h.Spool.AppendChunk(r.Context(), owner, uploadID, chunkIndex, totalChunks, filename, data); err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// completeUploadRequest is the JSON body CompleteUpload expects.
type completeUploadRequest struct {
	UploadID      string `json:"upload_id"`
	Filename      string `json:"filename"`
	TotalChunks   int    `json:"total_chunks"`
	HierarchyPath string `json:"hierarchy_path"`
	Kind          string `json:"kind"`
}

// CompleteUpload finalizes a chunked upload, creates the catalog row, and
// for videos enqueues the C2 transcode job.
func (h *Handlers) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	if owner == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	var req completeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}

	completed, err := h.Spool.CompleteUpload(r.Context(), owner, req.UploadID, req.Filename, req.TotalChunks)
	if err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}

	kind := catalog.KindPDF
	if req.Kind == string(catalog.KindVideo) {
		kind = catalog.KindVideo
	}

	artifactID, err := h.Catalog.CreateArtifact(r.Context(), &catalog.Artifact{
		Owner:         owner,
		Kind:          kind,
		Title:         completed.Filename,
		HierarchyPath: req.HierarchyPath,
	})
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	if kind == catalog.KindVideo {
		if _, err := h.Broker.Enqueue(transcode.JobType, transcode.Payload{
			ArtifactID:   artifactID,
			SpoolPath:    completed.SpoolPath,
			OriginalName: completed.Filename,
		}); err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"artifact_id": artifactID})
}

// AbortUpload discards an in-progress chunked upload.
func (h *Handlers) AbortUpload(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	uploadID := r.URL.Query().Get("upload_id")
	if owner == "" || uploadID == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}
	if err := h.Spool.AbortUpload(r.Context(), owner, uploadID); err != nil {
		apperror.WriteJSON(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelJob cancels an in-flight transcode or download job.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	artifactID := r.URL.Query().Get("artifact_id")
	if artifactID == "" || !h.Controller.Cancel(artifactID) {
		apperror.WriteJSON(w, r, apperror.ErrJobNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// StreamArtifact serves the primary media file with Range support (C5).
func (h *Handlers) StreamArtifact(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	artifactID := r.URL.Query().Get("artifact_id")
	if owner == "" || artifactID == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}
	h.Stream.ServeRange(w, r, artifactID, owner)
}

// StreamAsset serves a derived thumbnail or preview asset.
func (h *Handlers) StreamAsset(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	artifactID := r.URL.Query().Get("artifact_id")
	kind := r.URL.Query().Get("kind") // "thumbnail" or "preview"
	if owner == "" || artifactID == "" || kind == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	artifact, err := h.Catalog.GetArtifact(r.Context(), artifactID)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrNotFound))
		return
	}

	assetRef := artifact.ThumbnailRef
	if kind == "preview" {
		assetRef = artifact.PreviewRef
	}
	h.Stream.ServeAsset(w, r, artifactID, owner, assetRef, kind)
}

// ReconcileScope triggers an on-demand reconciliation pass for one scope
// (C6), rather than waiting for the scheduled cmd/reconcile run.
func (h *Handlers) ReconcileScope(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	hierarchyPath := r.URL.Query().Get("hierarchy_path")
	if owner == "" || hierarchyPath == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	path := splitHierarchyPath(hierarchyPath)
	result, err := h.Reconciler.ReconcileScope(r.Context(), owner, path, hierarchyPath)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// ChatMedia lists the media-bearing messages in a chat channel (C3), the
// equivalent of the original GroupMediaView.
func (h *Handlers) ChatMedia(w http.ResponseWriter, r *http.Request) {
	if h.Telegram == nil {
		apperror.WriteJSON(w, r, apperror.ErrServiceUnavailable)
		return
	}

	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	items, err := h.Telegram.FetchMedia(r.Context(), groupID)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrChannelUnavailable))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// chatDownloadRequest is the JSON body EnqueueChatDownload expects.
type chatDownloadRequest struct {
	GroupID       string          `json:"group_id"`
	HierarchyPath string          `json:"hierarchy_path"`
	Items         []telegram.Item `json:"items"`
}

// EnqueueChatDownload creates the PENDING artifacts and enqueues the batch
// download job for a set of chat messages (C3), the equivalent of the
// original TelegramDownloadView.
func (h *Handlers) EnqueueChatDownload(w http.ResponseWriter, r *http.Request) {
	if h.Telegram == nil {
		apperror.WriteJSON(w, r, apperror.ErrServiceUnavailable)
		return
	}

	owner := ownerFromRequest(r)
	if owner == "" {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	var req chatDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
		return
	}
	if req.GroupID == "" || req.HierarchyPath == "" || len(req.Items) == 0 {
		apperror.WriteJSON(w, r, apperror.ErrBadRequest)
		return
	}

	deps := &telegram.Dependencies{Catalog: h.Catalog, Broker: h.Broker}
	artifactIDs, err := telegram.EnqueueDownloads(r.Context(), deps, owner, req.GroupID, req.HierarchyPath, req.Items)
	if err != nil {
		apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"artifact_ids": artifactIDs})
}

func splitHierarchyPath(p string) []string {
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
