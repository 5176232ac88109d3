// Package stream is the C5 range-streaming egress path: it serves stored
// artifacts back to clients as seekable byte-range responses over plain
// net/http (see DESIGN.md for why Range-header parsing is hand-rolled
// here). Built on a DownloadFile shape (storage lookup -> stream to
// http.ResponseWriter), generalized to honor Range.
package stream

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/media-vault/internal/apperror"
	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
	"github.com/abdul-hamid-achik/media-vault/internal/logger"
	"github.com/abdul-hamid-achik/media-vault/internal/store"
)

const initialRangeCapBytes = 2 * 1024 * 1024

// Server serves artifacts and their derived assets as byte-range responses.
type Server struct {
	Catalog *catalog.Queries
	Store   store.Store
}

// parsedRange is the result of parsing a Range: bytes=a-b header.
type parsedRange struct {
	start      int64
	end        int64 // meaningful only when hasEnd is true
	hasEnd     bool
	initialCap bool // true when the client's range was open-ended
}

func parseRangeHeader(header string) (parsedRange, bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return parsedRange{}, false
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return parsedRange{}, false
	}

	var pr parsedRange
	if parts[0] == "" {
		pr.start = 0
	} else {
		start, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || start < 0 {
			return parsedRange{}, false
		}
		pr.start = start
	}

	if parts[1] == "" {
		pr.hasEnd = false
		pr.initialCap = true
	} else {
		end, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || end < pr.start {
			return parsedRange{}, false
		}
		pr.end = end
		pr.hasEnd = true
	}
	return pr, true
}

// ServeRange fetches the artifact, enforces ownership, backfills
// size_bytes if missing, and streams either a full 200 response or a 206
// partial-content response per the Range header.
func (s *Server) ServeRange(w http.ResponseWriter, r *http.Request, artifactID, owner string) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	artifact, err := s.Catalog.GetArtifact(ctx, artifactID)
	if err != nil {
		apperror.WriteHTTP(w, r, apperror.Wrap(err, apperror.ErrNotFound))
		return
	}
	if artifact.Owner != owner {
		apperror.WriteHTTP(w, r, apperror.ErrNotFound)
		return
	}

	size := artifact.SizeBytes
	if size == 0 {
		meta, err := s.Store.GetMetadata(ctx, artifact.RemoteFileID)
		if err != nil {
			apperror.WriteHTTP(w, r, apperror.Wrap(err, apperror.ErrStorageDownloadFailed))
			return
		}
		size = meta.Size
		if err := s.Catalog.UpdateSizeBytes(ctx, artifactID, size); err != nil {
			log.Warn("failed to backfill size_bytes", "artifact_id", artifactID, "error", err)
		}
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		s.serveFull(w, r, artifact.RemoteFileID, size)
		return
	}

	pr, ok := parseRangeHeader(rangeHeader)
	if !ok || pr.start >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		apperror.WriteHTTP(w, r, apperror.ErrRangeNotSatisfiable)
		return
	}

	end := pr.end
	if pr.initialCap {
		end = pr.start + initialRangeCapBytes - 1
	}
	if end > size-1 {
		end = size - 1
	}

	body, err := s.Store.DownloadRange(ctx, artifact.RemoteFileID, pr.start, end)
	if err != nil {
		apperror.WriteHTTP(w, r, apperror.Wrap(err, apperror.ErrStorageDownloadFailed))
		return
	}
	defer body.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", pr.start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-pr.start+1, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.Copy(w, body); err != nil {
		log.Debug("range stream interrupted", "artifact_id", artifactID, "error", err)
	}
}

func (s *Server) serveFull(w http.ResponseWriter, r *http.Request, fileID string, size int64) {
	body, err := s.Store.DownloadRange(r.Context(), fileID, 0, -1)
	if err != nil {
		apperror.WriteHTTP(w, r, apperror.Wrap(err, apperror.ErrStorageDownloadFailed))
		return
	}
	defer body.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// ServeAsset streams thumbnail_ref or preview_ref with immutable-appropriate
// caching hints, enforcing that assetRef is one of the two recorded on the
// artifact.
func (s *Server) ServeAsset(w http.ResponseWriter, r *http.Request, artifactID, owner, assetRef, kind string) {
	ctx := r.Context()

	artifact, err := s.Catalog.GetArtifact(ctx, artifactID)
	if err != nil {
		apperror.WriteHTTP(w, r, apperror.Wrap(err, apperror.ErrNotFound))
		return
	}
	if artifact.Owner != owner {
		apperror.WriteHTTP(w, r, apperror.ErrNotFound)
		return
	}
	if assetRef != artifact.ThumbnailRef && assetRef != artifact.PreviewRef {
		apperror.WriteHTTP(w, r, apperror.ErrNotFound)
		return
	}

	body, err := s.Store.DownloadRange(ctx, assetRef, 0, -1)
	if err != nil {
		apperror.WriteHTTP(w, r, apperror.Wrap(err, apperror.ErrStorageDownloadFailed))
		return
	}
	defer body.Close()

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if kind == "thumbnail" {
		w.Header().Set("Content-Type", "image/jpeg")
	} else {
		w.Header().Set("Content-Type", "video/mp4")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
